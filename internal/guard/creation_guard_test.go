package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-desk/internal/domain"
	apperrors "github.com/spec-kit/guild-desk/pkg/util"
)

type fakeFinder struct {
	mu     sync.Mutex
	ticket *domain.Ticket
	err    error
}

func (f *fakeFinder) FindOpenByOwner(ctx context.Context, guildID, ownerID string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticket, f.err
}

func (f *fakeFinder) set(ticket *domain.Ticket) {
	f.mu.Lock()
	f.ticket = ticket
	f.mu.Unlock()
}

type failingLocker struct{}

func (failingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("locker down")
}

func (failingLocker) Unlock(ctx context.Context, key string) error { return nil }

func TestTryCreateHappyPath(t *testing.T) {
	g := NewCreationGuard(NewMemoryLocker(), &fakeFinder{}, time.Second, zap.NewNop())

	ticket, err := g.TryCreate(context.Background(), "g1", "u1", func(ctx context.Context) (*domain.Ticket, error) {
		return &domain.Ticket{ID: "t1", GuildID: "g1", OwnerID: "u1"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "t1", ticket.ID)
}

func TestTryCreateExactlyOneWinner(t *testing.T) {
	finder := &fakeFinder{}
	g := NewCreationGuard(NewMemoryLocker(), finder, time.Second, zap.NewNop())

	const attempts = 10
	var created int64
	var duplicates int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := g.TryCreate(context.Background(), "g1", "u1", func(ctx context.Context) (*domain.Ticket, error) {
				time.Sleep(50 * time.Millisecond)
				ticket := &domain.Ticket{ID: "winner", GuildID: "g1", OwnerID: "u1", Status: domain.TicketStatusOpen}
				finder.set(ticket)
				atomic.AddInt64(&created, 1)
				return ticket, nil
			})
			if err != nil {
				require.Equal(t, apperrors.CodeDuplicateTicket, apperrors.CodeOf(err))
				atomic.AddInt64(&duplicates, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), created)
	assert.Equal(t, int64(attempts-1), duplicates)
}

func TestTryCreateRejectsWhenOwnerHasOpenTicket(t *testing.T) {
	finder := &fakeFinder{ticket: &domain.Ticket{ID: "t1", ChannelID: "c1", Status: domain.TicketStatusOpen}}
	g := NewCreationGuard(NewMemoryLocker(), finder, time.Second, zap.NewNop())

	_, err := g.TryCreate(context.Background(), "g1", "u1", func(ctx context.Context) (*domain.Ticket, error) {
		t.Error("createFn must not run when an open ticket exists")
		return nil, nil
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDuplicateTicket, apperrors.CodeOf(err))
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "t1", domainErr.Details["ticket_id"])
}

func TestTryCreateReleasesLockAfterFailure(t *testing.T) {
	g := NewCreationGuard(NewMemoryLocker(), &fakeFinder{}, time.Minute, zap.NewNop())
	boom := errors.New("insert failed")

	_, err := g.TryCreate(context.Background(), "g1", "u1", func(ctx context.Context) (*domain.Ticket, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// The lock must not outlive the failed attempt.
	ticket, err := g.TryCreate(context.Background(), "g1", "u1", func(ctx context.Context) (*domain.Ticket, error) {
		return &domain.Ticket{ID: "t2"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "t2", ticket.ID)
}

func TestTryCreateDegradesWhenLockerFails(t *testing.T) {
	g := NewCreationGuard(failingLocker{}, &fakeFinder{}, time.Second, zap.NewNop())

	ticket, err := g.TryCreate(context.Background(), "g1", "u1", func(ctx context.Context) (*domain.Ticket, error) {
		return &domain.Ticket{ID: "t1"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "t1", ticket.ID)
}

func TestMemoryLockerTTLExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Now()
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	acquired, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)

	now = now.Add(2 * time.Second)
	acquired, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "expired lock must be reacquirable")
}

func TestMemoryLockerDropsExpiredEntries(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Now()
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		acquired, err := locker.TryLock(ctx, fmt.Sprintf("k%d", i), time.Second)
		require.NoError(t, err)
		require.True(t, acquired)
	}

	now = now.Add(2 * time.Second)
	acquired, err := locker.TryLock(ctx, "fresh", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	locker.mu.Lock()
	remaining := len(locker.expires)
	locker.mu.Unlock()
	assert.Equal(t, 1, remaining, "expired locks must not accumulate")
}

func TestMemoryLockerUnlock(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, locker.Unlock(ctx, "k"))

	acquired, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
