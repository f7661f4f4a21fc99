package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Livestream/internal/apperr"
	"Livestream/internal/db"
	"Livestream/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	ErrOperationTimeout   = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// ConversationRepository persists conversations and their ordering counter.
type ConversationRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error)
	GetOrCreate(ctx context.Context, members []string) (*model.Conversation, bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	// NextSeq atomically reserves the next creation-order value of a conversation.
	NextSeq(ctx context.Context, id primitive.ObjectID) (int64, error)
	// SetLastMessage moves lastMessage forward; an older seq never overwrites a newer one.
	SetLastMessage(ctx context.Context, id primitive.ObjectID, last model.LastMessage) (*model.Conversation, error)
}

// MessageRepository persists messages. Mutations that must not touch a
// deleted message report matched=false instead of failing.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) (*db.PaginatedResult[model.Message], error)
	AddReadReceipt(ctx context.Context, id primitive.ObjectID, receipt model.ReadReceipt) (bool, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string, editedAt time.Time) (bool, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, deletedBy string, deletedAt time.Time) (bool, error)
	SetReaction(ctx context.Context, id primitive.ObjectID, reaction model.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, id primitive.ObjectID, userID string) (bool, error)
}

// NotificationRepository persists notifications scoped to their recipient.
type NotificationRepository interface {
	Insert(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, q model.NotificationQuery) ([]model.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead reports whether the notification exists for userID.
	MarkRead(ctx context.Context, userID string, id primitive.ObjectID) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// Delete reports whether the notification existed for userID.
	Delete(ctx context.Context, userID string, id primitive.ObjectID) (bool, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository reads user display data owned by the profile service.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

// withRetry runs op until it succeeds, fails with a non-retryable error or
// exhausts maxRetries.
func withRetry(ctx context.Context, logger *zap.Logger, name string, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return err
			}
			logger.Warn("retrying operation",
				zap.String("op", name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", maxRetries),
			)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// classify converts driver errors into the domain taxonomy.
func classify(logger *zap.Logger, op string, err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound(notFound)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("operation timeout", zap.String("op", op))
		return apperr.Server(op+" failed", ErrOperationTimeout)
	case errors.Is(err, context.Canceled):
		return apperr.Server(op+" cancelled", err)
	default:
		logger.Error("operation failed", zap.String("op", op), zap.Error(err))
		return apperr.Server(op+" failed", err)
	}
}
