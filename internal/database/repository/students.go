package repository

import (
	"context"
	"database/sql"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/database"
	"github.com/jask-aran/uniapp/internal/domain"
)

// StudentRepo persists student snapshots.
type StudentRepo struct {
	db *sql.DB
}

func NewStudentRepo(db *sql.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

// Upsert writes one student and its subject rows atomically.
func (r *StudentRepo) Upsert(ctx context.Context, st *domain.Student, version int) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		return upsertStudentTx(ctx, tx, st, version)
	})
}

// Delete removes a student row; subject rows cascade.
func (r *StudentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	return err
}

// DeleteAll empties both tables.
func (r *StudentRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM students`)
	return err
}

// ReplaceAll swaps the persisted set for the given snapshots in one transaction.
func (r *StudentRepo) ReplaceAll(ctx context.Context, snaps []core.Snapshot) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM students`); err != nil {
			return err
		}
		for _, snap := range snaps {
			st, ok := snap.Entity.(*domain.Student)
			if !ok {
				continue
			}
			if err := upsertStudentTx(ctx, tx, st, snap.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll reads every student in insertion order, subjects in enrolment order.
func (r *StudentRepo) LoadAll(ctx context.Context) ([]core.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, name, email, password_hash, version, created_at
	FROM students ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []core.Snapshot
	byID := map[string]*domain.Student{}
	for rows.Next() {
		var st domain.Student
		var version int
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.PasswordHash, &version, &st.CreatedAt); err != nil {
			return nil, err
		}
		byID[st.ID] = &st
		snaps = append(snaps, core.Snapshot{Entity: &st, Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subs, err := r.db.QueryContext(ctx, `
	SELECT student_id, subject_id, mark, grade
	FROM subjects ORDER BY student_id, position`)
	if err != nil {
		return nil, err
	}
	defer subs.Close()
	for subs.Next() {
		var studentID string
		var sub domain.Subject
		if err := subs.Scan(&studentID, &sub.ID, &sub.Mark, &sub.Grade); err != nil {
			return nil, err
		}
		if st, ok := byID[studentID]; ok {
			st.Subjects = append(st.Subjects, sub)
		}
	}
	return snaps, subs.Err()
}

func upsertStudentTx(ctx context.Context, tx *sql.Tx, st *domain.Student, version int) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO students(id, name, email, password_hash, version, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 email=excluded.email,
	 password_hash=excluded.password_hash,
	 version=excluded.version;
	`, st.ID, st.Name, st.Email, st.PasswordHash, version, st.CreatedAt)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE student_id = ?`, st.ID); err != nil {
		return err
	}
	for i, sub := range st.Subjects {
		if _, err := tx.ExecContext(ctx, `
	INSERT INTO subjects(student_id, subject_id, mark, grade, position)
	VALUES (?, ?, ?, ?, ?)`,
			st.ID, sub.ID, sub.Mark, sub.Grade, i); err != nil {
			return err
		}
	}
	return nil
}
