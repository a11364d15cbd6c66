package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLProductRepository struct {
	db *sql.DB
}

func NewMySQLProductRepository(db *sql.DB) *MySQLProductRepository {
	return &MySQLProductRepository{db: db}
}

// GetSnapshot reads the live-bidding fields of one product. The price is a
// DECIMAL column; ROUND(...*100) converts it to minor units in the query so
// no float arithmetic happens on the Go side.
func (r *MySQLProductRepository) GetSnapshot(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	query := `
        SELECT id, title, status, CAST(ROUND(current_price * 100) AS SIGNED), bid_count, end_time
        FROM products WHERE id = ?
    `

	var snap domain.ProductSnapshot
	var status string

	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&snap.ID, &snap.Title, &status,
		&snap.CurrentBid, &snap.BidCount, &snap.EndTime)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}

	snap.Status = parseStatus(status)
	return &snap, nil
}

func parseStatus(s string) domain.ProductStatus {
	switch s {
	case "live", "active":
		return domain.ProductLive
	case "ended", "sold", "closed":
		return domain.ProductEnded
	default:
		return domain.ProductScheduled
	}
}
