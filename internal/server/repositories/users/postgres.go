// Package users provides the SQL-backed user repository.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, first_name, last_name, email_on_art_shared, email_on_comment,
		email_on_like, receive_art_paused, last_art_sent_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	var lastSent sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.EmailOnArtShared, &u.EmailOnComment,
		&u.EmailOnLike, &u.ReceiveArtPaused, &lastSent, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.LastArtSentAt = dbx.TimePtr(lastSent)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query :=
		`INSERT INTO users (id, email, first_name, last_name, email_on_art_shared, email_on_comment,
		 email_on_like, receive_art_paused, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FirstName, user.LastName, user.EmailOnArtShared, user.EmailOnComment,
		user.EmailOnLike, user.ReceiveArtPaused, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

// ListForWeekly returns the users taking part in a weekly run: not paused and
// accepting shared-art email, ordered by id. onlyEmail narrows the set to one
// address (case-insensitive); limit <= 0 means no limit.
func (r *PostgresRepository) ListForWeekly(ctx context.Context, onlyEmail string, limit int) ([]*models.User, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + userColumns + ` FROM users
		 WHERE receive_art_paused = FALSE AND email_on_art_shared = TRUE`)

	var args []any
	if onlyEmail != "" {
		args = append(args, strings.ToLower(onlyEmail))
		fmt.Fprintf(&sb, " AND lower(email) = $%d", len(args))
	}
	sb.WriteString(" ORDER BY id")
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) TouchLastArtSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_art_sent_at = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

var preferenceColumns = map[models.NotificationKind]string{
	models.NotificationSharedArt: "email_on_art_shared",
	models.NotificationComment:   "email_on_comment",
	models.NotificationLike:      "email_on_like",
}

// SetEmailPreference switches the email preference for one notification kind.
func (r *PostgresRepository) SetEmailPreference(ctx context.Context, id string, kind models.NotificationKind, enabled bool) error {
	column, ok := preferenceColumns[kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q: %w", kind, common.ErrorValidation)
	}

	query := `UPDATE users SET ` + column + ` = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, enabled, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
