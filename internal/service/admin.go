package service

import (
	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
)

// GradeOrder fixes the display order of grade groups.
var GradeOrder = []string{domain.GradeHD, domain.GradeD, domain.GradeC, domain.GradeP, domain.GradeZ}

// Admin groups the administrator operations.
type Admin struct {
	Processor *core.Processor
	Store     *core.Store
}

// Students lists every live student in registration order.
func (s *Admin) Students() []*domain.Student {
	snaps := s.Store.List()
	out := make([]*domain.Student, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Entity.(*domain.Student))
	}
	return out
}

// GroupByGrade buckets students under each grade band they earned.
// A student appears at most once per band however many subjects sit in it.
func (s *Admin) GroupByGrade() map[string][]*domain.Student {
	groups := map[string][]*domain.Student{}
	seen := map[string]map[string]bool{}
	for _, st := range s.Students() {
		for _, sub := range st.Subjects {
			if seen[sub.Grade] == nil {
				seen[sub.Grade] = map[string]bool{}
			}
			if seen[sub.Grade][st.ID] {
				continue
			}
			seen[sub.Grade][st.ID] = true
			groups[sub.Grade] = append(groups[sub.Grade], st)
		}
	}
	return groups
}

// PartitionPassFail splits students on the pass threshold.
func (s *Admin) PartitionPassFail() (passing, failing []*domain.Student) {
	for _, st := range s.Students() {
		if st.IsPassing() {
			passing = append(passing, st)
		} else {
			failing = append(failing, st)
		}
	}
	return passing, failing
}

// Remove deletes the identified student.
func (s *Admin) Remove(id string) error {
	_, err := s.Processor.Submit(core.Command{Kind: core.KindDelete, TargetID: id})
	return err
}

// Clear tombstones every student and reports how many went.
func (s *Admin) Clear() (int, error) {
	res, err := s.Processor.Submit(core.Command{Kind: core.KindClear})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Save asks the archive to flush the full live set.
func (s *Admin) Save() (int, error) {
	res, err := s.Processor.Submit(core.Command{Kind: core.KindSave})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}
