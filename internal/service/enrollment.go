package service

import (
	"errors"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
	"github.com/jask-aran/uniapp/internal/secrets"
)

// ErrInvalidCredentials deliberately hides whether the email or the
// password was wrong.
var ErrInvalidCredentials = errors.New("Invalid credentials!")

// Enrollment wraps the student-facing command flows.
type Enrollment struct {
	Processor *core.Processor
}

// Register creates a new student account.
func (s *Enrollment) Register(name, email, password string) (*domain.Student, error) {
	res, err := s.Processor.Submit(core.Command{Kind: core.KindCreate, Payload: domain.RegisterPayload{
		Name:     name,
		Email:    email,
		Password: password,
	}})
	if err != nil {
		return nil, err
	}
	return res.Snapshot.Entity.(*domain.Student), nil
}

// Login resolves the student by email and checks the password.
func (s *Enrollment) Login(email, password string) (*domain.Student, error) {
	res, err := s.Processor.Submit(core.Command{Kind: core.KindQuery, Payload: core.LookupByKey{Value: email}})
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	st := res.Snapshot.Entity.(*domain.Student)
	if !secrets.VerifyPassword(password, st.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return st, nil
}

// Enrol adds one randomly assessed subject to the student.
func (s *Enrollment) Enrol(studentID string) (*domain.Student, error) {
	return s.update(studentID, domain.EnrolPayload{})
}

// Withdraw drops a subject from the student.
func (s *Enrollment) Withdraw(studentID, subjectID string) (*domain.Student, error) {
	return s.update(studentID, domain.WithdrawPayload{SubjectID: subjectID})
}

// ChangePassword replaces the student's password after confirmation.
func (s *Enrollment) ChangePassword(studentID, newPassword, confirm string) (*domain.Student, error) {
	return s.update(studentID, domain.ChangePasswordPayload{NewPassword: newPassword, Confirm: confirm})
}

// Refresh re-reads the student's current state.
func (s *Enrollment) Refresh(studentID string) (*domain.Student, error) {
	res, err := s.Processor.Submit(core.Command{Kind: core.KindQuery, TargetID: studentID})
	if err != nil {
		return nil, err
	}
	return res.Snapshot.Entity.(*domain.Student), nil
}

func (s *Enrollment) update(studentID string, payload any) (*domain.Student, error) {
	res, err := s.Processor.Submit(core.Command{Kind: core.KindUpdate, TargetID: studentID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return res.Snapshot.Entity.(*domain.Student), nil
}
