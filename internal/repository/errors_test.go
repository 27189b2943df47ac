package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, domain.ErrNotFound},
		{"unique", &pq.Error{Code: "23505"}, domain.ErrConstraintViolation},
		{"foreign key", &pq.Error{Code: "23503"}, domain.ErrConstraintViolation},
		{"check", &pq.Error{Code: "23514"}, domain.ErrConstraintViolation},
		{"bad uuid", &pq.Error{Code: "22P02"}, domain.ErrInvalidArgument},
		{"connection", &pq.Error{Code: "08006"}, domain.ErrUnavailable},
		{"bad conn", driver.ErrBadConn, domain.ErrUnavailable},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	assert.Nil(t, classify("op", nil))

	// driver detail survives wrapping
	var pqErr *pq.Error
	require.True(t, errors.As(classify("op", &pq.Error{Code: "23505", Constraint: "uq_members_open"}), &pqErr))
	assert.Equal(t, "uq_members_open", pqErr.Constraint)
	assert.False(t, errors.Is(classify("op", context.Canceled), domain.ErrUnavailable))
}
