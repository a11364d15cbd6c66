package mysql

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLUserRepository struct {
	db *sql.DB
}

func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// IsActive reports whether the account exists and is allowed to hold a live
// session. A missing row is (false, nil), not an error.
func (r *MySQLUserRepository) IsActive(ctx context.Context, userID string) (bool, error) {
	query := `SELECT is_active FROM users WHERE id = ?`

	var active bool
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return active, nil
}
