package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	domaccount "github.com/mossleaf/bookmart/internal/domain/account"
	domcatalog "github.com/mossleaf/bookmart/internal/domain/catalog"
	domuser "github.com/mossleaf/bookmart/internal/domain/user"
)

// Open connects to MySQL with settings suitable for short settlement
// transactions.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	db.SetMaxOpenConns(32)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// ItemRepository persists catalog items with an optimistic version column:
// the conditional UPDATE affects zero rows when another writer got there
// first, which surfaces as ErrConflict.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domcatalog.Item, error) {
	var item domcatalog.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, unit_price, quantity, version, updated_at
		FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Title, &item.UnitPrice, &item.Quantity, &item.Version, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domcatalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: query item: %w", err)
	}
	return &item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domcatalog.Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, title, unit_price, quantity, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.UnitPrice, item.Quantity, item.Version, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("mysql: insert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) Save(ctx context.Context, item *domcatalog.Item) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET title = ?, unit_price = ?, quantity = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		item.Title, item.UnitPrice, item.Quantity, item.ID, item.Version,
	)
	if err != nil {
		return fmt.Errorf("mysql: update item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domcatalog.ErrConflict
	}
	return nil
}

func (r *ItemRepository) List(ctx context.Context) ([]*domcatalog.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, unit_price, quantity, version, updated_at
		FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("mysql: list items: %w", err)
	}
	defer rows.Close()

	var out []*domcatalog.Item
	for rows.Next() {
		var item domcatalog.Item
		if err := rows.Scan(&item.ID, &item.Title, &item.UnitPrice, &item.Quantity, &item.Version, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("mysql: scan item: %w", err)
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

// AccountRepository persists funding accounts, version-checked like items.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domaccount.Account, error) {
	var acct domaccount.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, alias, balance, version, created_at, updated_at
		FROM accounts WHERE id = ?`, id,
	).Scan(&acct.ID, &acct.UserID, &acct.Alias, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domaccount.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: query account: %w", err)
	}
	return &acct, nil
}

func (r *AccountRepository) Create(ctx context.Context, acct *domaccount.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, alias, balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.UserID, acct.Alias, acct.Balance, acct.Version, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("mysql: insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) Save(ctx context.Context, acct *domaccount.Account) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET alias = ?, balance = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		acct.Alias, acct.Balance, acct.ID, acct.Version,
	)
	if err != nil {
		return fmt.Errorf("mysql: update account: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domaccount.ErrConflict
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mysql: delete account: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domaccount.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*domaccount.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, alias, balance, version, created_at, updated_at
		FROM accounts WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("mysql: list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domaccount.Account
	for rows.Next() {
		var acct domaccount.Account
		if err := rows.Scan(&acct.ID, &acct.UserID, &acct.Alias, &acct.Balance, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("mysql: scan account: %w", err)
		}
		out = append(out, &acct)
	}
	return out, rows.Err()
}

// UserRepository persists users. No versioning: users are immutable after
// registration.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domuser.User, error) {
	var u domuser.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, nickname, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Nickname, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domuser.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: query user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domuser.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, nickname, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Nickname, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mysql: insert user: %w", err)
	}
	return nil
}
