package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/secrets"
)

// RegisterPayload creates a student. Password arrives in the clear and is
// hashed before the entity is stored.
type RegisterPayload struct {
	Name     string
	Email    string
	Password string
}

// EnrolPayload adds one randomly assessed subject to the target student.
type EnrolPayload struct{}

// WithdrawPayload drops the identified subject from the target student.
type WithdrawPayload struct {
	SubjectID string
}

// ChangePasswordPayload replaces the target student's password.
type ChangePasswordPayload struct {
	NewPassword string
	Confirm     string
}

// Students implements the command hooks for the student entity kind.
// The generator mints identifiers and subject marks; commands are
// serialized upstream, so the generator needs no locking.
type Students struct {
	rng *rand.Rand
}

// NewStudents builds the schema. A nil rng gets a time-seeded source;
// tests pass a fixed seed for reproducible identifiers and marks.
func NewStudents(rng *rand.Rand) *Students {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Students{rng: rng}
}

func (s *Students) Kind() string { return "student" }

func (s *Students) Validate(cmd core.Command) error {
	switch cmd.Kind {
	case core.KindCreate:
		p, ok := cmd.Payload.(RegisterPayload)
		if !ok {
			return core.Validationf("register requires a name, email and password")
		}
		if p.Name == "" || p.Email == "" || p.Password == "" {
			return core.Validationf(msgFieldsRequired)
		}
		if !ValidEmail(p.Email) {
			return core.Validationf(msgInvalidEmail)
		}
		if !ValidPassword(p.Password) {
			return core.Validationf(msgInvalidPassword)
		}
	case core.KindUpdate:
		switch p := cmd.Payload.(type) {
		case EnrolPayload:
		case WithdrawPayload:
			if p.SubjectID == "" {
				return core.Validationf("a subject ID is required")
			}
		case ChangePasswordPayload:
			if !ValidPassword(p.NewPassword) {
				return core.Validationf(msgInvalidPassword)
			}
			if p.NewPassword != p.Confirm {
				return core.Validationf(msgPasswordMismatch)
			}
		default:
			return core.Validationf("unsupported student update %T", cmd.Payload)
		}
	}
	return nil
}

func (s *Students) New(cmd core.Command, taken func(string) bool) (core.Entity, error) {
	p := cmd.Payload.(RegisterPayload)
	hash, err := secrets.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &Student{
		ID:           s.mintStudentID(taken),
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}, nil
}

func (s *Students) Apply(current core.Entity, cmd core.Command) (core.Entity, error) {
	st := current.(*Student)
	switch p := cmd.Payload.(type) {
	case EnrolPayload:
		if len(st.Subjects) >= MaxSubjects {
			return nil, core.Conflictf("Students are allowed to enrol in %d subjects only", MaxSubjects)
		}
		st.Subjects = append(st.Subjects, s.newSubject(st.Subjects))
		return st, nil
	case WithdrawPayload:
		for i, sub := range st.Subjects {
			if sub.ID == p.SubjectID {
				st.Subjects = append(st.Subjects[:i], st.Subjects[i+1:]...)
				return st, nil
			}
		}
		return nil, core.NotFoundf("Subject-%s not found", p.SubjectID)
	case ChangePasswordPayload:
		hash, err := secrets.HashPassword(p.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		st.PasswordHash = hash
		return st, nil
	}
	return nil, core.Validationf("unsupported student update %T", cmd.Payload)
}

func (s *Students) UniqueKey() string { return "email" }

func (s *Students) KeyOf(e core.Entity) string { return e.(*Student).Email }

// mintStudentID draws six-digit identifiers until one is unassigned.
func (s *Students) mintStudentID(taken func(string) bool) string {
	for {
		id := fmt.Sprintf("%06d", s.rng.Intn(1000000))
		if !taken(id) {
			return id
		}
	}
}

// newSubject draws a three-digit subject ID unique within the student's
// current enrolments and a mark in the 25..100 band.
func (s *Students) newSubject(existing []Subject) Subject {
	var id string
	for {
		id = fmt.Sprintf("%03d", s.rng.Intn(1000))
		clash := false
		for _, sub := range existing {
			if sub.ID == id {
				clash = true
				break
			}
		}
		if !clash {
			break
		}
	}
	mark := s.rng.Intn(76) + 25
	return Subject{ID: id, Mark: mark, Grade: GradeFor(mark)}
}
