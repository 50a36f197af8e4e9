package segments

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wholesale-hub/settlement/internal/credit"
)

// Repository reads customer profiles from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListProfiles joins credit accounts with live order counts and the
// customer's city. Cancelled orders are not counted; a customer without a
// recorded location has city 0.
func (r *Repository) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
SELECT c.user_id,
       c.total_purchases,
       c.loyalty_level,
       COALESCE(l.city_id, 0),
       (SELECT COUNT(*) FROM orders o WHERE o.user_id = c.user_id AND o.status <> 'cancelled')
FROM customer_credits c
LEFT JOIN customer_locations l ON l.user_id = c.user_id
ORDER BY c.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var level string
		if err := rows.Scan(&p.UserID, &p.TotalPurchases, &level, &p.CityID, &p.OrderCount); err != nil {
			return nil, err
		}
		p.LoyaltyTier = credit.Level(level)
		out = append(out, p)
	}
	return out, rows.Err()
}
