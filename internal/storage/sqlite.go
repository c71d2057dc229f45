package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auth_service/internal/models"

	"github.com/gofrs/uuid"
	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStorage is the embedded backend used for local runs and tests.
// Timestamps are stored as unix nanoseconds.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens path (":memory:" is allowed) and applies the
// embedded sqlite migrations.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	const op = "storage.NewSQLiteStorage"

	inMemory := path == ":memory:"

	dsn := path
	if !inMemory {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if inMemory {
		// every connection would otherwise open its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) CreateUser(ctx context.Context, user models.User) error {
	const op = "storage.CreateUser"

	query := fmt.Sprintf(`INSERT INTO %s(id, username, email, full_name, password_hash, refresh_token, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);`, usersTable)

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		nullString(user.RefreshToken),
		user.CreatedAt.UnixNano(),
		user.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *SQLiteStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf(`SELECT id, username, email, full_name, password_hash, refresh_token, created_at, updated_at
	FROM %s WHERE id=?;`, usersTable)

	user, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *SQLiteStorage) GetUserByLogin(ctx context.Context, login string) (models.User, error) {
	const op = "storage.GetUserByLogin"

	query := fmt.Sprintf(`SELECT id, username, email, full_name, password_hash, refresh_token, created_at, updated_at
	FROM %s WHERE username=?1 OR email=?1
	ORDER BY (email=?1) DESC LIMIT 1;`, usersTable)

	user, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, login))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *SQLiteStorage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.SaveUser"

	query := fmt.Sprintf(`UPDATE %s SET email=?, full_name=?, password_hash=?, updated_at=? WHERE id=?;`, usersTable)

	res, err := s.db.ExecContext(ctx, query, user.Email, user.FullName, user.PasswordHash, user.UpdatedAt.UnixNano(), user.ID)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return checkAffected(op, res)
}

func (s *SQLiteStorage) SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string, updatedAt time.Time) error {
	const op = "storage.SetRefreshToken"

	query := fmt.Sprintf("UPDATE %s SET refresh_token=?, updated_at=? WHERE id=?;", usersTable)

	res, err := s.db.ExecContext(ctx, query, nullString(token), updatedAt.UnixNano(), userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return checkAffected(op, res)
}

func (s *SQLiteStorage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string, updatedAt time.Time) error {
	const op = "storage.RotateRefreshToken"

	query := fmt.Sprintf("UPDATE %s SET refresh_token=?, updated_at=? WHERE id=? AND refresh_token=?;", usersTable)

	res, err := s.db.ExecContext(ctx, query, next, updatedAt.UnixNano(), userID, current)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return checkAffected(op, res)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanSQLiteUser(row *sql.Row) (models.User, error) {
	var (
		user      models.User
		refresh   sql.NullString
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&refresh,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	if refresh.Valid {
		user.RefreshToken = &refresh.String
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	user.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return user, nil
}

func checkAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
