package domain

import (
	"time"

	"github.com/jask-aran/uniapp/internal/core"
)

// Grade bands awarded per subject mark.
const (
	GradeHD = "HD"
	GradeD  = "D"
	GradeC  = "C"
	GradeP  = "P"
	GradeZ  = "Z"
)

const (
	// MaxSubjects caps concurrent enrolments per student.
	MaxSubjects = 4
	// PassMark is the average required to be counted as passing.
	PassMark = 50.0
)

// GradeFor maps a subject mark to its grade band.
func GradeFor(mark int) string {
	switch {
	case mark >= 85:
		return GradeHD
	case mark >= 75:
		return GradeD
	case mark >= 65:
		return GradeC
	case mark >= 50:
		return GradeP
	default:
		return GradeZ
	}
}

// Subject is a single enrolment with its randomly assessed mark.
type Subject struct {
	ID    string
	Mark  int
	Grade string
}

// Student is the root entity of the application.
type Student struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Subjects     []Subject
	CreatedAt    time.Time
}

func (s *Student) EntityID() string { return s.ID }

func (s *Student) Clone() core.Entity {
	c := *s
	c.Subjects = append([]Subject(nil), s.Subjects...)
	return &c
}

// AverageMark is the mean mark across enrolled subjects, 0 when none.
func (s *Student) AverageMark() float64 {
	if len(s.Subjects) == 0 {
		return 0
	}
	total := 0
	for _, sub := range s.Subjects {
		total += sub.Mark
	}
	return float64(total) / float64(len(s.Subjects))
}

// IsPassing reports whether the average mark meets the pass threshold.
func (s *Student) IsPassing() bool {
	return s.AverageMark() >= PassMark
}

// Subject returns the enrolled subject with the given ID, if any.
func (s *Student) Subject(id string) (Subject, bool) {
	for _, sub := range s.Subjects {
		if sub.ID == id {
			return sub, true
		}
	}
	return Subject{}, false
}
