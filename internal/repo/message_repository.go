package repo

import (
	"context"
	"time"

	"Livestream/internal/db"
	"Livestream/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []model.ReadReceipt{}
	}
	if msg.Reactions == nil {
		msg.Reactions = []model.Reaction{}
	}

	// client-side _id makes a retried insert collide instead of duplicating
	err := withRetry(ctx, m.logger, "insert_message", func(ctx context.Context) error {
		_, err := m.mongoRepo.Create(ctx, *msg)
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return classify(m.logger, "insert message", err, "message not found")
	}

	m.logger.Info("message inserted successfully",
		zap.String("message_id", msg.ID.Hex()),
		zap.String("conversation_id", msg.ConversationID.Hex()),
		zap.Int64("seq", msg.Seq),
	)
	return nil
}

func (m *messageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var msg *model.Message
	err := withRetry(ctx, m.logger, "get_message", func(ctx context.Context) error {
		found, err := m.mongoRepo.FindOne(ctx, db.NewFilter().ID(id).Build())
		msg = found
		return err
	})
	if err != nil {
		return nil, classify(m.logger, "get message", err, "message not found")
	}
	return msg, nil
}

// -----------------------------------------------------------------------------
// ListByConversation returns history in ascending creation order
// -----------------------------------------------------------------------------

func (m *messageRepository) ListByConversation(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) (*db.PaginatedResult[model.Message], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()

	m.logger.Debug("filtering messages",
		zap.String("conversation_id", conversationID.Hex()),
		zap.Int64("page", page),
	)

	var result *db.PaginatedResult[model.Message]
	err := withRetry(ctx, m.logger, "list_messages", func(ctx context.Context) error {
		r, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: limit,
			SortBy:   "seq",
			SortDesc: false,
		})
		result = r
		return err
	})
	if err != nil {
		return nil, classify(m.logger, "list messages", err, "conversation not found")
	}

	m.logger.Debug("messages filtered successfully",
		zap.String("conversation_id", conversationID.Hex()),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
		zap.Int64("total_pages", result.TotalPages),
	)
	return result, nil
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// AddReadReceipt appends a receipt unless one exists for the same user.
func (m *messageRepository) AddReadReceipt(ctx context.Context, id primitive.ObjectID, receipt model.ReadReceipt) (bool, error) {
	filter := db.NewFilter().ID(id).Ne("read_by.user_id", receipt.UserID).Build()
	return m.updateOne(ctx, "add_read_receipt", filter, bson.M{"$push": bson.M{"read_by": receipt}})
}

func (m *messageRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content string, editedAt time.Time) (bool, error) {
	filter := db.NewFilter().ID(id).NotDeleted().Build()
	return m.updateOne(ctx, "update_content", filter, bson.M{"$set": bson.M{
		"content":   content,
		"edited":    true,
		"edited_at": editedAt,
	}})
}

func (m *messageRepository) SoftDelete(ctx context.Context, id primitive.ObjectID, deletedBy string, deletedAt time.Time) (bool, error) {
	filter := db.NewFilter().ID(id).NotDeleted().Build()
	return m.updateOne(ctx, "soft_delete", filter, bson.M{"$set": bson.M{
		"deleted":    true,
		"deleted_at": deletedAt,
		"deleted_by": deletedBy,
	}})
}

// SetReaction replaces the user's reaction in a single pipeline update.
func (m *messageRepository) SetReaction(ctx context.Context, id primitive.ObjectID, reaction model.Reaction) (bool, error) {
	filter := db.NewFilter().ID(id).NotDeleted().Build()
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this.user_id", reaction.UserID}},
				}},
				bson.A{bson.M{"user_id": reaction.UserID, "emoji": reaction.Emoji}},
			}},
		}}},
	}
	return m.updateOne(ctx, "set_reaction", filter, pipeline)
}

func (m *messageRepository) RemoveReaction(ctx context.Context, id primitive.ObjectID, userID string) (bool, error) {
	filter := db.NewFilter().ID(id).NotDeleted().Build()
	return m.updateOne(ctx, "remove_reaction", filter, bson.M{"$pull": bson.M{"reactions": bson.M{"user_id": userID}}})
}

func (m *messageRepository) updateOne(ctx context.Context, op string, filter bson.M, update interface{}) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var matched bool
	err := withRetry(ctx, m.logger, op, func(ctx context.Context) error {
		res, err := m.mongoRepo.UpdateRaw(ctx, filter, update)
		if err != nil {
			return err
		}
		matched = res.MatchedCount > 0
		return nil
	})
	if err != nil {
		return false, classify(m.logger, op, err, "message not found")
	}
	return matched, nil
}
