package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

func TestStudentRepositoryUpsertByEmployeeID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (employee_id) DO UPDATE SET")).
		WithArgs(sqlmock.AnyArg(), "E001", "Ayu", "ayu@corp.id", "", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow("existing-id", false))

	student := &models.Student{EmployeeID: "E001", Name: "Ayu", Email: "ayu@corp.id"}
	inserted, err := repo.UpsertByEmployeeID(context.Background(), student)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "existing-id", student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
