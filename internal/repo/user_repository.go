package repo

import (
	"context"
	"time"

	"Livestream/internal/db"
	"Livestream/internal/model"

	"go.uber.org/zap"
)

const userLookupTimeout = 2 * time.Second

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// GetUser is used only for display hydration, so it runs with a short
// timeout and no retries.
func (r *userRepository) GetUser(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, userLookupTimeout)
	defer cancel()

	result, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		return nil, classify(r.logger, "get user", err, "user not found")
	}
	return result, nil
}
