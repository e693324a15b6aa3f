package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBlacklistService_List(t *testing.T) {
	db := &mockDB{}
	svc := NewBlacklistService(db)
	ctx := context.Background()

	now := time.Now()
	rows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = "user-1"
			*(dest[1].(*string)) = "rm"
			*(dest[2].(*time.Time)) = now
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*string)) = "user-1"
			*(dest[1].(*string)) = "shutdown"
			*(dest[2].(*time.Time)) = now
			return nil
		},
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil).Once()

	entries, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rm", entries[0].Command)
	assert.Equal(t, "shutdown", entries[1].Command)
	db.AssertExpectations(t)
}

func TestBlacklistService_Commands(t *testing.T) {
	db := &mockDB{}
	svc := NewBlacklistService(db)
	ctx := context.Background()

	rows := newMockRows(func(dest ...any) error {
		*(dest[0].(*string)) = "user-1"
		*(dest[1].(*string)) = "rm"
		*(dest[2].(*time.Time)) = time.Now()
		return nil
	})
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil).Once()

	commands, err := svc.Commands(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rm"}, commands)
	db.AssertExpectations(t)
}

func TestBlacklistService_Add(t *testing.T) {
	db := &mockDB{}
	svc := NewBlacklistService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	require.NoError(t, svc.Add(ctx, "user-1", "rm"))
	db.AssertExpectations(t)
}

func TestBlacklistService_Remove_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewBlacklistService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()

	err := svc.Remove(ctx, "user-1", "never-blocked")
	assert.ErrorIs(t, err, ErrNotFound)
	db.AssertExpectations(t)
}

func TestBlacklistService_Contains(t *testing.T) {
	db := &mockDB{}
	svc := NewBlacklistService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(boolRow(true)).Once()

	blocked, err := svc.Contains(ctx, "user-1", "rm")
	require.NoError(t, err)
	assert.True(t, blocked)
	db.AssertExpectations(t)
}

func TestBlacklistService_Add_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewBlacklistService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused")).Once()

	err := svc.Add(ctx, "user-1", "rm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add blacklist entry")
	db.AssertExpectations(t)
}
