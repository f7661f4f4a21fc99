package repo

import (
	"context"
	"time"

	"Livestream/internal/db"
	"Livestream/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type notificationRepository struct {
	mongoRepo *db.Repository[model.Notification]
	logger    *zap.Logger
}

func NewNotificationRepository(repo *db.Repository[model.Notification], logger *zap.Logger) NotificationRepository {
	return &notificationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *notificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}

	err := withRetry(ctx, r.logger, "insert_notification", func(ctx context.Context) error {
		_, err := r.mongoRepo.Create(ctx, *n)
		return err
	})
	if err != nil {
		return classify(r.logger, "insert notification", err, "notification not found")
	}

	r.logger.Debug("notification inserted",
		zap.String("notification_id", n.ID.Hex()),
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
	)
	return nil
}

// List returns one page of a user's notifications, most recent first
func (r *notificationRepository) List(ctx context.Context, q model.NotificationQuery) ([]model.Notification, int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	f := db.NewFilter().Eq("user_id", q.UserID)
	if q.Type != "" {
		f.Eq("type", q.Type)
	}

	var result *db.PaginatedResult[model.Notification]
	err := withRetry(ctx, r.logger, "list_notifications", func(ctx context.Context) error {
		res, err := r.mongoRepo.FindWithPagination(ctx, f.Build(), db.PaginationParams{
			Page:     q.Page,
			PageSize: q.Limit,
			SortBy:   "created_at",
			SortDesc: true,
		})
		result = res
		return err
	})
	if err != nil {
		return nil, 0, classify(r.logger, "list notifications", err, "notification not found")
	}
	return result.Data, result.Total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var count int64
	err := withRetry(ctx, r.logger, "count_unread", func(ctx context.Context) error {
		c, err := r.mongoRepo.Count(ctx, db.NewFilter().Eq("user_id", userID).Eq("is_read", false).Build())
		count = c
		return err
	})
	if err != nil {
		return 0, classify(r.logger, "count unread notifications", err, "notification not found")
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, id primitive.ObjectID) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var matched bool
	err := withRetry(ctx, r.logger, "mark_notification_read", func(ctx context.Context) error {
		res, err := r.mongoRepo.Update(ctx, db.NewFilter().ID(id).Eq("user_id", userID).Build(), bson.M{"is_read": true})
		if err != nil {
			return err
		}
		matched = res.MatchedCount > 0
		return nil
	})
	if err != nil {
		return false, classify(r.logger, "mark notification read", err, "notification not found")
	}
	return matched, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var modified int64
	err := withRetry(ctx, r.logger, "mark_all_notifications_read", func(ctx context.Context) error {
		res, err := r.mongoRepo.UpdateMany(ctx, db.NewFilter().Eq("user_id", userID).Eq("is_read", false).Build(), bson.M{"is_read": true})
		if err != nil {
			return err
		}
		modified = res.ModifiedCount
		return nil
	})
	if err != nil {
		return 0, classify(r.logger, "mark all notifications read", err, "notification not found")
	}
	return modified, nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID string, id primitive.ObjectID) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var deleted bool
	err := withRetry(ctx, r.logger, "delete_notification", func(ctx context.Context) error {
		res, err := r.mongoRepo.Delete(ctx, db.NewFilter().ID(id).Eq("user_id", userID).Build())
		if err != nil {
			return err
		}
		deleted = res.DeletedCount > 0
		return nil
	})
	if err != nil {
		return false, classify(r.logger, "delete notification", err, "notification not found")
	}
	return deleted, nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return r.deleteMany(ctx, "clear_notifications", db.NewFilter().Eq("user_id", userID).Build())
}

// PurgeReadBefore removes read notifications created before cutoff
func (r *notificationRepository) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteMany(ctx, "purge_notifications", db.NewFilter().Eq("is_read", true).Lt("created_at", cutoff).Build())
}

func (r *notificationRepository) deleteMany(ctx context.Context, op string, filter bson.M) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var deleted int64
	err := withRetry(ctx, r.logger, op, func(ctx context.Context) error {
		res, err := r.mongoRepo.DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return 0, classify(r.logger, op, err, "notification not found")
	}
	return deleted, nil
}
