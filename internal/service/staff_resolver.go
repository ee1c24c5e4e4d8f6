package service

import (
	"context"
	"time"

	"github.com/spec-kit/guild-desk/internal/cache"
	"github.com/spec-kit/guild-desk/internal/repository"
)

// StaffResolver answers whether an actor holds a staff role in a guild.
// Resolution is external to the lifecycle rules; transitions receive
// the answer as a capability.
type StaffResolver interface {
	IsStaff(ctx context.Context, guildID, userID string) (bool, error)
}

// CachedStaffResolver wraps the staff repository with a short TTL cache
// so hot button-click paths avoid a role query per action.
type CachedStaffResolver struct {
	staff repository.StaffRepository
	cache *cache.TTLCache[string, bool]
	ttl   time.Duration
}

// NewCachedStaffResolver constructs the resolver.
func NewCachedStaffResolver(staff repository.StaffRepository, ttl time.Duration) *CachedStaffResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedStaffResolver{
		staff: staff,
		cache: cache.NewTTLCache[string, bool](),
		ttl:   ttl,
	}
}

// IsStaff resolves the staff capability, consulting the cache first.
func (r *CachedStaffResolver) IsStaff(ctx context.Context, guildID, userID string) (bool, error) {
	key := guildID + ":" + userID
	if isStaff, ok := r.cache.Get(key); ok {
		return isStaff, nil
	}
	isStaff, err := r.staff.HasStaffRole(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	r.cache.Set(key, isStaff, r.ttl)
	return isStaff, nil
}

// Invalidate drops the cached answer for one guild member, for use
// after a grant or revoke.
func (r *CachedStaffResolver) Invalidate(guildID, userID string) {
	r.cache.Delete(guildID + ":" + userID)
}
