package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask-aran/uniapp/internal/core"
	"github.com/jask-aran/uniapp/internal/domain"
)

func subject(id string, mark int) domain.Subject {
	return domain.Subject{ID: id, Mark: mark, Grade: domain.GradeFor(mark)}
}

func TestGroupByGradeListsStudentOncePerBand(t *testing.T) {
	t.Parallel()
	store, proc, _ := newEnrollment(1)
	admin := &Admin{Processor: proc, Store: store}

	seedStudents(t, proc,
		&domain.Student{ID: "000001", Name: "Alice", Email: "alice@university.com", PasswordHash: "x",
			Subjects: []domain.Subject{subject("001", 90), subject("002", 95), subject("003", 55)}},
		&domain.Student{ID: "000002", Name: "Bob", Email: "bob@university.com", PasswordHash: "x",
			Subjects: []domain.Subject{subject("004", 88)}},
	)

	groups := admin.GroupByGrade()
	require.Len(t, groups[domain.GradeHD], 2)
	require.Equal(t, "000001", groups[domain.GradeHD][0].ID)
	require.Equal(t, "000002", groups[domain.GradeHD][1].ID)
	require.Len(t, groups[domain.GradeP], 1)
	require.Empty(t, groups[domain.GradeZ])
}

func TestPartitionPassFail(t *testing.T) {
	t.Parallel()
	store, proc, _ := newEnrollment(1)
	admin := &Admin{Processor: proc, Store: store}

	seedStudents(t, proc,
		&domain.Student{ID: "000001", Name: "Passing", Email: "p@university.com", PasswordHash: "x",
			Subjects: []domain.Subject{subject("001", 75)}},
		&domain.Student{ID: "000002", Name: "Failing", Email: "f@university.com", PasswordHash: "x",
			Subjects: []domain.Subject{subject("002", 45)}},
		&domain.Student{ID: "000003", Name: "Idle", Email: "i@university.com", PasswordHash: "x"},
	)

	passing, failing := admin.PartitionPassFail()
	require.Len(t, passing, 1)
	require.Equal(t, "000001", passing[0].ID)
	require.Len(t, failing, 2)
}

func TestRemoveAndClear(t *testing.T) {
	t.Parallel()
	store, proc, _ := newEnrollment(1)
	admin := &Admin{Processor: proc, Store: store}

	seedStudents(t, proc,
		&domain.Student{ID: "000001", Name: "A", Email: "a@university.com", PasswordHash: "x"},
		&domain.Student{ID: "000002", Name: "B", Email: "b@university.com", PasswordHash: "x"},
	)

	require.NoError(t, admin.Remove("000001"))
	err := admin.Remove("000001")
	require.True(t, core.IsNotFound(err))
	require.Len(t, admin.Students(), 1)

	n, err := admin.Clear()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, admin.Students())
}
