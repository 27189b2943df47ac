package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

var profileCols = []string{"user_id", "full_name", "email", "role", "region_id", "organization_id", "created_at"}

func TestCreateProfileIfAbsent_Inserts(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresProfilesRepository(db)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO profiles .* ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("u-1", "", "", "farmer", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	p, created, err := repo.CreateProfileIfAbsent(context.Background(), &domain.Profile{UserID: "u-1", Role: domain.RoleFarmer})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, now, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProfileIfAbsent_KeepsExisting(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresProfilesRepository(db)

	mock.ExpectQuery(`INSERT INTO profiles .* ON CONFLICT \(user_id\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
	mock.ExpectQuery(`FROM profiles WHERE user_id = \$1`).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow("u-1", "Ben Dizon", "ben@da.gov.ph", "regional_admin", "r-1", nil, time.Now()))

	p, created, err := repo.CreateProfileIfAbsent(context.Background(), &domain.Profile{UserID: "u-1", Role: domain.RoleFarmer})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.RoleRegionalAdmin, p.Role, "an existing row is never overwritten")
	require.NotNil(t, p.RegionID)
	assert.Equal(t, "r-1", *p.RegionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProfileIfAbsent_BadID(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresProfilesRepository(db)

	mock.ExpectQuery(`INSERT INTO profiles`).WillReturnError(&pq.Error{Code: "22P02"})
	_, _, err := repo.CreateProfileIfAbsent(context.Background(), &domain.Profile{UserID: "not-a-uuid", Role: domain.RoleFarmer})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.NoError(t, mock.ExpectationsWereMet())
}
