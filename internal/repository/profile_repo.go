package repository

import (
	"context"
	"errors"

	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	DB *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// GetByID returns the profile, or nil when absent. Used to resolve the
// notification address and full name for order emails.
func (r *ProfileRepository) GetByID(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, COALESCE(full_name, ''), COALESCE(role, 'customer')
		FROM profiles
		WHERE id=$1
	`, userID).Scan(&p.ID, &p.Email, &p.FullName, &p.Role)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
