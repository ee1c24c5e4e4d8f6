package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guild-desk/internal/domain"
)

// StaffRepository persists guild staff role grants.
type StaffRepository interface {
	HasStaffRole(ctx context.Context, guildID, userID string) (bool, error)
	Grant(ctx context.Context, grant *domain.StaffGrant) error
	Revoke(ctx context.Context, guildID, userID string) error
	ListByGuild(ctx context.Context, guildID string) ([]domain.StaffGrant, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) HasStaffRole(ctx context.Context, guildID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM guild_staff WHERE guild_id=$1 AND user_id=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, guildID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *staffRepository) Grant(ctx context.Context, grant *domain.StaffGrant) error {
	const query = `
        INSERT INTO guild_staff (guild_id, user_id, role)
        VALUES ($1,$2,$3)
        ON CONFLICT (guild_id, user_id) DO UPDATE SET role=EXCLUDED.role
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query, grant.GuildID, grant.UserID, grant.Role).Scan(&grant.CreatedAt)
}

func (r *staffRepository) Revoke(ctx context.Context, guildID, userID string) error {
	const query = `DELETE FROM guild_staff WHERE guild_id=$1 AND user_id=$2`
	_, err := r.pool.Exec(ctx, query, guildID, userID)
	return err
}

func (r *staffRepository) ListByGuild(ctx context.Context, guildID string) ([]domain.StaffGrant, error) {
	const query = `
        SELECT guild_id, user_id, role, created_at
        FROM guild_staff WHERE guild_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffGrant
	for rows.Next() {
		var grant domain.StaffGrant
		if err := rows.Scan(&grant.GuildID, &grant.UserID, &grant.Role, &grant.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, grant)
	}
	return result, rows.Err()
}
