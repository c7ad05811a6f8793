package repository

import (
	"context"
	"errors"
	"strings"

	"strayland/internal/models"
	"strayland/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	// ErrLikeConflict is returned by InsertLike when the (post, voter) pair already exists.
	ErrLikeConflict = errors.New("like already exists")
	// ErrPostMissing is returned by InsertLike when the post row is gone.
	ErrPostMissing = errors.New("post does not exist")
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// storeError logs a failed store call and wraps it as STORE_UNAVAILABLE.
func storeError(ctx context.Context, log *observability.RepoLogger, op string, err error) error {
	log.LogError(ctx, err, op)
	return models.NewStoreUnavailableError(op, err)
}
