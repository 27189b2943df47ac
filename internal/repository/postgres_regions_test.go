package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

func TestDeleteRegion_HasDependents(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresRegionsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id::text FROM regions WHERE id = \$1 FOR UPDATE`).WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM provinces`).WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"provinces", "orgs"}).AddRow(2, 0))
	mock.ExpectRollback()

	err := repo.DeleteRegion(context.Background(), "r-1")
	assert.ErrorIs(t, err, domain.ErrHasDependents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRegion_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresRegionsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM regions WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM provinces`).
		WillReturnRows(sqlmock.NewRows([]string{"provinces", "orgs"}).AddRow(0, 0))
	mock.ExpectExec(`DELETE FROM region_budgets`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM agricultural_data`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM regions WHERE id = \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteRegion(context.Background(), "r-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
