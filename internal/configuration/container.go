package configuration

import (
	"context"
	"fmt"
	"time"

	"Livestream/internal/auth"
	"Livestream/internal/db"
	"Livestream/internal/handler"
	"Livestream/internal/hub"
	"Livestream/internal/model"
	"Livestream/internal/presence"
	"Livestream/internal/repo"
	"Livestream/internal/repo/memory"
	"Livestream/internal/retention"
	"Livestream/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Container struct {
	ConversationHandler handler.ConversationHandler
	MessageHandler      handler.MessageHandler
	NotificationHandler handler.NotificationHandler
	MonitorHandler      handler.MonitorHandler

	Gateway   *hub.Gateway
	Verifier  *auth.Verifier
	Retention *retention.Runner
	Config    Config
	Logger    *zap.Logger

	// private - for cleanup
	mongoClient   *mongo.Database
	stopRetention context.CancelFunc
}

type repositories struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	notifications repo.NotificationRepository
	users         repo.UserRepository
}

func BuildContainer(config *Config) (*Container, error) {
	logger, err := NewLogger(config.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	c := &Container{Config: *config, Logger: logger}

	repos, err := c.openStore()
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	registry := hub.NewRegistry()
	tracker := presence.NewMemoryTracker()
	hydrator := service.NewHydrator(repos.users, logger)
	chatService := service.NewChatService(repos.conversations, repos.messages, hydrator,
		service.ChatConfig{Moderators: config.Chat.Moderators}, logger)
	notificationService := service.NewNotificationService(repos.notifications, hydrator, registry, logger)

	c.Verifier = auth.NewVerifier(config.Auth.JWTSecret, config.Auth.Leeway.Duration())
	c.Gateway = hub.NewGateway(gatewayConfig(config), registry, tracker, chatService, notificationService, c.Verifier, logger)

	c.ConversationHandler = handler.NewConversationHandler(chatService, registry, logger)
	c.MessageHandler = handler.NewMessageHandler(chatService, registry, logger)
	c.NotificationHandler = handler.NewNotificationHandler(notificationService, logger)
	c.MonitorHandler = handler.NewMonitorHandler(hub.NewMonitorService(c.Gateway), tracker)

	if config.Retention.Enabled {
		c.Retention, err = retention.NewRunner(repos.notifications, config.Retention.Cron, config.Retention.MaxAge.Duration(), logger)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.stopRetention = c.Retention.Start(context.Background())
	}

	return c, nil
}

func (c *Container) openStore() (*repositories, error) {
	if c.Config.Store == StoreMemory {
		c.Logger.Warn("Using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			conversations: store.Conversations(),
			messages:      store.Messages(),
			notifications: store.Notifications(),
			users:         store.Users(),
		}, nil
	}

	mc := c.Config.ChatDatabase
	con, err := db.OpenConnection(mc.Uri, mc.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	c.mongoClient = con

	if err := db.EnsureIndexes(con, db.Collections{
		Conversations: mc.ConversationsCollection,
		Messages:      mc.MessagesCollection,
		Notifications: mc.NotificationsCollection,
		Users:         mc.UsersCollection,
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return &repositories{
		conversations: repo.NewConversationRepository(db.NewRepository[model.Conversation](con, mc.ConversationsCollection), c.Logger),
		messages:      repo.NewMessageRepository(db.NewRepository[model.Message](con, mc.MessagesCollection), c.Logger),
		notifications: repo.NewNotificationRepository(db.NewRepository[model.Notification](con, mc.NotificationsCollection), c.Logger),
		users:         repo.NewUserRepository(db.NewRepository[model.User](con, mc.UsersCollection), c.Logger),
	}, nil
}

func gatewayConfig(config *Config) hub.Config {
	return hub.Config{
		AuthTimeout:    config.Auth.AuthTimeout.Duration(),
		HandlerTimeout: config.Chat.HandlerTimeout.Duration(),
		WriteWait:      config.Chat.WriteWait.Duration(),
		PongWait:       config.Chat.PongWait.Duration(),
		MaxMessageSize: config.Chat.MaxFrameSize.Int64(),
		SendBufferSize: config.Chat.SendBufferSize,
		RateLimit:      config.Chat.RateLimit,
		RateBurst:      config.Chat.RateBurst,
		AllowedOrigins: config.Server.AllowedOrigins,
	}
}

// NewLogger builds a production logger, or a development one when asked,
// at the configured level.
func NewLogger(lc LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if lc.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	if c.stopRetention != nil {
		c.stopRetention()
	}

	// Stop the gateway first (closes all WebSocket connections)
	if c.Gateway != nil {
		c.Gateway.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
