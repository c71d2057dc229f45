package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth_service/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const pgUniqueViolation = "23505"

// querier is the subset of *pgxpool.Pool the storage needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Close()
}

type PostgresStorage struct {
	db querier
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User) error {
	const op = "storage.CreateUser"

	query := fmt.Sprintf(`INSERT INTO %s(id, username, email, full_name, password_hash, refresh_token, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`, usersTable)

	_, err := p.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.RefreshToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf(`SELECT id, username, email, full_name, password_hash, refresh_token, created_at, updated_at
	FROM %s WHERE id=$1;`, usersTable)

	user, err := p.scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByLogin(ctx context.Context, login string) (models.User, error) {
	const op = "storage.GetUserByLogin"

	query := fmt.Sprintf(`SELECT id, username, email, full_name, password_hash, refresh_token, created_at, updated_at
	FROM %s WHERE username=$1 OR email=$1
	ORDER BY (email=$1) DESC LIMIT 1;`, usersTable)

	user, err := p.scanUser(p.db.QueryRow(ctx, query, login))
	if err != nil {
		return user, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.SaveUser"

	query := fmt.Sprintf(`UPDATE %s
	SET email=$2, full_name=$3, password_hash=$4, updated_at=$5
	WHERE id=$1;`, usersTable)

	tag, err := p.db.Exec(ctx, query, user.ID, user.Email, user.FullName, user.PasswordHash, user.UpdatedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string, updatedAt time.Time) error {
	const op = "storage.SetRefreshToken"

	query := fmt.Sprintf("UPDATE %s SET refresh_token=$2, updated_at=$3 WHERE id=$1;", usersTable)

	tag, err := p.db.Exec(ctx, query, userID, token, updatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, current, next string, updatedAt time.Time) error {
	const op = "storage.RotateRefreshToken"

	query := fmt.Sprintf(`UPDATE %s SET refresh_token=$3, updated_at=$4
	WHERE id=$1 AND refresh_token=$2;`, usersTable)

	tag, err := p.db.Exec(ctx, query, userID, current, next, updatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) Close() error {
	p.db.Close()
	return nil
}

func (p *PostgresStorage) scanUser(row pgx.Row) (models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	return user, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
