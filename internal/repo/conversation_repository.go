package repo

import (
	"context"
	"time"

	"Livestream/internal/db"
	"Livestream/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// GetByID fetches a conversation document by ID
func (r *conversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	var conversation *model.Conversation
	err := withRetry(ctx, r.logger, "get_conversation", func(ctx context.Context) error {
		c, err := r.mongoRepo.FindOne(ctx, db.NewFilter().ID(id).Build())
		conversation = c
		return err
	})
	if err != nil {
		return nil, classify(r.logger, "get conversation", err, "conversation not found")
	}

	r.logger.Debug("conversation retrieved successfully",
		zap.String("conversation_id", id.Hex()),
		zap.Int("members_count", len(conversation.Members)),
	)
	return conversation, nil
}

// GetOrCreate returns the conversation keyed by the unordered member set,
// creating it on first use.
func (r *conversationRepository) GetOrCreate(ctx context.Context, members []string) (*model.Conversation, bool, error) {
	members = model.NormalizeMembers(members...)
	key := model.PairKeyFor(members...)
	filter := db.NewFilter().Eq("pair_key", key).Build()

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	existing, err := r.mongoRepo.FindOne(ctx, filter)
	if err == nil {
		return existing, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, classify(r.logger, "get conversation", err, "conversation not found")
	}

	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"members":      members,
		"pair_key":     key,
		"seq":          int64(0),
		"last_message": nil,
		"created_at":   now,
		"updated_at":   now,
	}}

	created := false
	res, err := r.mongoRepo.Upsert(ctx, filter, update)
	switch {
	case err == nil:
		created = res.UpsertedID != nil
	case mongo.IsDuplicateKeyError(err):
		// concurrent creator won the unique pair_key race
	default:
		return nil, false, classify(r.logger, "create conversation", err, "conversation not found")
	}

	conversation, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		return nil, false, classify(r.logger, "get conversation", err, "conversation not found")
	}

	if created {
		r.logger.Info("conversation created",
			zap.String("conversation_id", conversation.ID.Hex()),
			zap.Strings("members", members),
		)
	}
	return conversation, created, nil
}

// ListForUser returns every conversation the user belongs to, most recently active first
func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var conversations []model.Conversation
	err := withRetry(ctx, r.logger, "list_conversations", func(ctx context.Context) error {
		found, err := r.mongoRepo.FindAll(ctx, db.NewFilter().Eq("members", userID).Build(), opts)
		conversations = found
		return err
	})
	if err != nil {
		return nil, classify(r.logger, "list conversations", err, "conversation not found")
	}
	if conversations == nil {
		conversations = []model.Conversation{}
	}

	r.logger.Debug("conversations retrieved", zap.String("user_id", userID), zap.Int("count", len(conversations)))
	return conversations, nil
}

// NextSeq increments the conversation counter and returns the reserved value
func (r *conversationRepository) NextSeq(ctx context.Context, id primitive.ObjectID) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// $inc is not idempotent; not retried. Readers tolerate gaps in seq.
	conversation, err := r.mongoRepo.FindOneAndUpdate(ctx,
		db.NewFilter().ID(id).Build(),
		bson.M{"$inc": bson.M{"seq": 1}},
		false,
	)
	if err != nil {
		return 0, classify(r.logger, "reserve message seq", err, "conversation not found")
	}
	return conversation.Seq, nil
}

// SetLastMessage updates the conversation preview when last is newer than the stored one
func (r *conversationRepository) SetLastMessage(ctx context.Context, id primitive.ObjectID, last model.LastMessage) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().ID(id).Or(
		bson.M{"last_message": nil},
		bson.M{"last_message.seq": bson.M{"$lt": last.Seq}},
	).Build()

	err := withRetry(ctx, r.logger, "set_last_message", func(ctx context.Context) error {
		_, err := r.mongoRepo.Update(ctx, filter, bson.M{
			"last_message": last,
			"updated_at":   last.SentAt,
		})
		return err
	})
	if err != nil {
		return nil, classify(r.logger, "update last message", err, "conversation not found")
	}

	conversation, err := r.mongoRepo.FindOne(ctx, db.NewFilter().ID(id).Build())
	if err != nil {
		return nil, classify(r.logger, "get conversation", err, "conversation not found")
	}
	return conversation, nil
}
