package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsSerializationFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSerializationFailure(tc.err))
		})
	}
}

func TestWithRetry_ReplaysUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := withRetry(context.Background(), 5, func(n int, _ error) { retried = append(retried, n) }, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestWithRetry_ExhaustedReturnsConflict(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, nil, func() error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_DomainErrorIsNotRetried(t *testing.T) {
	domain := errors.New("estado invalido")
	calls := 0
	err := withRetry(context.Background(), 5, nil, func() error {
		calls++
		return domain
	})
	assert.ErrorIs(t, err, domain)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 10, func(int, error) { cancel() }, func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, calls)
}

func TestTxRunner_SinBaseDeDatosNoEjecuta(t *testing.T) {
	runner := NewTxRunner(nil, 3)
	ran := false
	err := runner.RunInTx(context.Background(), func(tx *gorm.DB) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrSinBaseDeDatos)
	assert.False(t, ran)
}
