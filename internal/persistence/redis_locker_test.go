package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKeyLockerTryLock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisKeyLocker(client)
	ctx := context.Background()

	mock.ExpectSetNX("guilddesk:create:g1:u1", "1", 5*time.Second).SetVal(true)

	acquired, err := locker.TryLock(ctx, "g1:u1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyLockerTryLockHeld(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisKeyLocker(client)
	ctx := context.Background()

	mock.ExpectSetNX("guilddesk:create:g1:u1", "1", 5*time.Second).SetVal(false)

	acquired, err := locker.TryLock(ctx, "g1:u1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyLockerTryLockError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisKeyLocker(client)
	ctx := context.Background()

	mock.ExpectSetNX("guilddesk:create:g1:u1", "1", time.Second).SetErr(errors.New("connection refused"))

	_, err := locker.TryLock(ctx, "g1:u1", time.Second)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisKeyLockerUnlock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisKeyLocker(client)
	ctx := context.Background()

	mock.ExpectDel("guilddesk:create:g1:u1").SetVal(1)

	require.NoError(t, locker.Unlock(ctx, "g1:u1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
