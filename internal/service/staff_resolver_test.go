package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guild-desk/internal/domain"
)

type countingStaffRepo struct {
	mu    sync.Mutex
	roles map[string]bool
	calls int
}

func (r *countingStaffRepo) HasStaffRole(ctx context.Context, guildID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.roles[guildID+":"+userID], nil
}

func (r *countingStaffRepo) Grant(ctx context.Context, grant *domain.StaffGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[grant.GuildID+":"+grant.UserID] = true
	return nil
}

func (r *countingStaffRepo) Revoke(ctx context.Context, guildID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, guildID+":"+userID)
	return nil
}

func (r *countingStaffRepo) ListByGuild(ctx context.Context, guildID string) ([]domain.StaffGrant, error) {
	return nil, nil
}

func (r *countingStaffRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestIsStaffCachesAnswer(t *testing.T) {
	repo := &countingStaffRepo{roles: map[string]bool{"g1:u1": true}}
	resolver := NewCachedStaffResolver(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		isStaff, err := resolver.IsStaff(ctx, "g1", "u1")
		require.NoError(t, err)
		assert.True(t, isStaff)
	}

	assert.Equal(t, 1, repo.callCount(), "repeat lookups must hit the cache")
}

func TestIsStaffCachesNegativeAnswer(t *testing.T) {
	repo := &countingStaffRepo{roles: map[string]bool{}}
	resolver := NewCachedStaffResolver(repo, time.Minute)
	ctx := context.Background()

	isStaff, err := resolver.IsStaff(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.False(t, isStaff)

	_, err = resolver.IsStaff(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.callCount())
}

func TestInvalidateForcesRefetch(t *testing.T) {
	repo := &countingStaffRepo{roles: map[string]bool{}}
	resolver := NewCachedStaffResolver(repo, time.Minute)
	ctx := context.Background()

	isStaff, err := resolver.IsStaff(ctx, "g1", "u1")
	require.NoError(t, err)
	require.False(t, isStaff)

	require.NoError(t, repo.Grant(ctx, &domain.StaffGrant{GuildID: "g1", UserID: "u1", Role: domain.StaffRoleModerator}))
	resolver.Invalidate("g1", "u1")

	isStaff, err = resolver.IsStaff(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.True(t, isStaff)
	assert.Equal(t, 2, repo.callCount())
}
