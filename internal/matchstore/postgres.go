// internal/matchstore/postgres.go

package matchstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres error codes for constraint failures.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(100) NOT NULL DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0,
		gender VARCHAR(30) NOT NULL DEFAULT '',
		phone_number VARCHAR(30) NOT NULL DEFAULT '',
		user_images TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL UNIQUE,
		from_user INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		to_user INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'Pending',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT matches_direction_unique UNIQUE (from_user, to_user),
		CONSTRAINT matches_not_self CHECK (from_user <> to_user)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_matches_from_user ON matches(from_user, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_to_user ON matches(to_user, seq)`,

	`ALTER TABLE users ADD COLUMN IF NOT EXISTS user_type VARCHAR(20) NOT NULL DEFAULT 'user_wo_housing'`,

	`CREATE TABLE IF NOT EXISTS housing (
		id SERIAL PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		address VARCHAR(200) NOT NULL,
		region_id INTEGER NOT NULL DEFAULT 0,
		comuna_id INTEGER NOT NULL DEFAULT 0,
		rent INTEGER NOT NULL,
		size INTEGER NOT NULL,
		available_room INTEGER NOT NULL DEFAULT 1,
		pets_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		smoking_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_housing_owner ON housing(owner_id, id)`,
}

// PostgresStore implements Store and UserStore on sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

const matchColumns = `id, seq, from_user, to_user, status, created_at, updated_at`

func (s *PostgresStore) List(ctx context.Context, userID int64, cursor string, limit int) (*Page, error) {
	after, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (from_user = $1 OR to_user = $1) AND seq > $2
		ORDER BY seq`
	args := []interface{}{userID, after}
	if limit > 0 {
		// One extra row tells whether another page exists.
		query += ` LIMIT $3`
		args = append(args, limit+1)
	}

	var rows []Match
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	page := &Page{Matches: rows}
	if page.Matches == nil {
		page.Matches = []Match{}
	}
	if limit > 0 && len(rows) > limit {
		page.Matches = rows[:limit]
		page.NextCursor = formatCursor(rows[limit-1].Seq)
	}
	return page, nil
}

func (s *PostgresStore) Create(ctx context.Context, from, to int64) (*Match, error) {
	query := `
		INSERT INTO matches (id, from_user, to_user, status)
		SELECT $1, $2, $3, 'Pending'
		WHERE NOT EXISTS (
			SELECT 1 FROM matches
			WHERE status = 'Matched'
			  AND ((from_user = $2 AND to_user = $3) OR (from_user = $3 AND to_user = $2))
		)
		RETURNING ` + matchColumns

	var m Match
	err := s.db.QueryRowxContext(ctx, query, uuid.NewString(), from, to).StructScan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) Confirm(ctx context.Context, id string, userID int64) (*Match, error) {
	query := `
		UPDATE matches
		SET status = 'Matched', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND to_user = $2 AND status = 'Pending'
		RETURNING ` + matchColumns

	var m Match
	err := s.db.QueryRowxContext(ctx, query, id, userID).StructScan(&m)
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("confirm match: %w", err)
	}

	// Nothing updated: work out why.
	var current Match
	err = s.db.GetContext(ctx, &current, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("confirm match: %w", err)
	case current.Status == StatusMatched:
		return nil, ErrConflict
	default:
		return nil, ErrForbidden
	}
}

func (s *PostgresStore) IsMatched(ctx context.Context, a, b int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE status = 'Matched'
			  AND ((from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1))
		)`, a, b)
	if err != nil {
		return false, fmt.Errorf("check match: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

const userColumns = `id, email, password_hash, name, age, gender, phone_number, user_type, user_images, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if u.Images == nil {
		u.Images = pq.StringArray{}
	}
	if u.UserType == "" {
		u.UserType = UserWithoutHousing
	}
	query := `
		INSERT INTO users (email, password_hash, name, age, gender, phone_number, user_type, user_images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		u.Email, u.PasswordHash, u.Name, u.Age, u.Gender, u.PhoneNumber, u.UserType, u.Images,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET name = $2, age = $3, gender = $4, phone_number = $5, user_images = $6,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		u.ID, u.Name, u.Age, u.Gender, u.PhoneNumber, u.Images,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recommendations(ctx context.Context, userID int64, limit int) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.id <> $1
		  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.from_user = $1 AND m.to_user = u.id)
		ORDER BY u.id
		LIMIT $2`

	if limit <= 0 {
		limit = 50
	}
	users := []User{}
	if err := s.db.SelectContext(ctx, &users, query, userID, limit); err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	return users, nil
}

const housingColumns = `id, owner_id, address, region_id, comuna_id, rent, size, available_room, pets_allowed, smoking_allowed, created_at`

func (s *PostgresStore) CreateHousing(ctx context.Context, h *Housing) error {
	query := `
		INSERT INTO housing (owner_id, address, region_id, comuna_id, rent, size, available_room, pets_allowed, smoking_allowed)
		VALUES (:owner_id, :address, :region_id, :comuna_id, :rent, :size, :available_room, :pets_allowed, :smoking_allowed)
		RETURNING id, created_at`

	rows, err := s.db.NamedQueryContext(ctx, query, h)
	if err == nil {
		defer rows.Close()
		if rows.Next() {
			return rows.Scan(&h.ID, &h.CreatedAt)
		}
		// The constraint error surfaces after the row description.
		err = rows.Err()
		if err == nil {
			err = sql.ErrNoRows
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrUserNotFound
	}
	return fmt.Errorf("create housing: %w", err)
}

func (s *PostgresStore) GetHousing(ctx context.Context, id int64) (*Housing, error) {
	var h Housing
	err := s.db.GetContext(ctx, &h, `SELECT `+housingColumns+` FROM housing WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHousingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get housing: %w", err)
	}
	return &h, nil
}

func (s *PostgresStore) ListHousing(ctx context.Context, ownerID int64) ([]Housing, error) {
	out := []Housing{}
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+housingColumns+` FROM housing WHERE owner_id = $1 ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list housing: %w", err)
	}
	return out, nil
}
