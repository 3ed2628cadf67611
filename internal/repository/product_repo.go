package repository

import (
	"context"

	"github.com/yudhasanggrama/lappygo-store/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository struct {
	DB *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{DB: db}
}

// GetByIDs returns the live product rows for the given ids. Missing ids are
// simply absent from the result; callers validate completeness.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price, stock, image_url, is_active
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
