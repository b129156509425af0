package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/store"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresCollection is the cloud-variant persistence collaborator. It
// expects a `transactions` table (id bigserial, owner_id, date,
// description, amount_cents, type, category, created_at) and a `users`
// table (id bigserial, email unique, display_name, password_hash,
// created_at). Schema management is outside this system.
type PostgresCollection struct {
	pool *pgxpool.Pool
}

func NewPostgresCollection(pool *pgxpool.Pool) *PostgresCollection {
	return &PostgresCollection{pool: pool}
}

// Insert implements store.Collection; the returned transaction carries
// the database-assigned id.
func (c *PostgresCollection) Insert(ctx context.Context, ownerID int64, t core.Transaction) (core.Transaction, error) {
	query := `
		INSERT INTO transactions (owner_id, date, description, amount_cents, type, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := c.pool.QueryRow(ctx, query,
		ownerID, t.Date.Time, t.Description, t.Amount.Cents, string(t.Type), t.Category,
	).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// Delete implements store.Collection. Deletes are owner-scoped so one
// user can never remove another user's rows.
func (c *PostgresCollection) Delete(ctx context.Context, ownerID, id int64) error {
	tag, err := c.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListByOwner implements store.Collection, ordered by date descending
// with newest-inserted rows first on equal dates.
func (c *PostgresCollection) ListByOwner(ctx context.Context, ownerID int64) ([]core.Transaction, error) {
	query := `
		SELECT id, date, description, amount_cents, type, category
		FROM transactions
		WHERE owner_id = $1
		ORDER BY date DESC, id DESC
	`
	rows, err := c.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			date time.Time
			typ  string
		)
		if err := rows.Scan(&t.ID, &date, &t.Description, &t.Amount.Cents, &typ, &t.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
		t.Type = core.TransactionType(typ)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// CreateUser implements identity.UserStore.
func (c *PostgresCollection) CreateUser(ctx context.Context, email, displayName string, passwordHash []byte) (int64, error) {
	query := `
		INSERT INTO users (email, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id int64
	err := c.pool.QueryRow(ctx, query, email, displayName, passwordHash).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return 0, identity.ErrEmailTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail implements identity.UserStore.
func (c *PostgresCollection) GetUserByEmail(ctx context.Context, email string) (identity.User, error) {
	var user identity.User
	query := `
		SELECT id, email, display_name, password_hash
		FROM users
		WHERE email = $1
	`
	err := c.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.User{}, identity.ErrUserNotFound
		}
		return identity.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}
