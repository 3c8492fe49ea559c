package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const usersTable = "users"

var userStruct = database.NewStruct(new(models.User))

// UserRepository provides read access to the actor directory
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DB, logger ectologger.Logger) *UserRepository {
	return &UserRepository{
		Repository: NewRepository(db, logger),
	}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByID")
	defer span.End()

	sb := userStruct.SelectFrom(usersTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var user models.User
	err := r.DB().GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "user %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": id,
		}).Error("failed to get user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user")
	}

	return &user, nil
}

// ListByRole retrieves all users holding a role, used to build alert
// recipient lists.
func (r *UserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.ListByRole")
	defer span.End()

	sb := userStruct.SelectFrom(usersTable)
	sb.Where(sb.Equal("role", role))
	sb.OrderBy("name")

	query, args := sb.Build()
	var users []models.User
	err := r.DB().SelectContext(ctx, &users, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"role": role,
		}).Error("failed to list users")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list users")
	}

	return users, nil
}
