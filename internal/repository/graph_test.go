package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphRepository_IsConnected(t *testing.T) {
	ctx := context.Background()

	t.Run("edge in either direction counts", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGraphRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
			WithArgs(uint(1), uint(2), uint(2), uint(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		connected, err := repo.IsConnected(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, connected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("strangers are not connected", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewGraphRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "follows"`).
			WithArgs(uint(1), uint(9), uint(9), uint(1)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		connected, err := repo.IsConnected(ctx, 1, 9)
		require.NoError(t, err)
		assert.False(t, connected)
	})
}

func TestGraphRepository_IsInvited(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGraphRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "layer_invites"`).
		WithArgs(uint(4), uint(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	invited, err := repo.IsInvited(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.True(t, invited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphRepository_InCloseCircle(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGraphRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "close_circle_members"`).
		WithArgs(uint(1), uint(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	in, err := repo.InCloseCircle(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, in)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphRepository_Invite_Idempotent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGraphRepository(db)

	mock.ExpectExec(`INSERT INTO layer_invites`).
		WithArgs(uint(4), uint(2), uint(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO layer_invites`).
		WithArgs(uint(4), uint(2), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Invite(context.Background(), 4, 2, 1))
	require.NoError(t, repo.Invite(context.Background(), 4, 2, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphRepository_Follow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGraphRepository(db)

	mock.ExpectExec(`INSERT INTO follows`).
		WithArgs(uint(1), uint(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Follow(context.Background(), 1, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphRepository_RevokeInvite(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGraphRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "layer_invites"`).
		WithArgs(uint(4), uint(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RevokeInvite(context.Background(), 4, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
