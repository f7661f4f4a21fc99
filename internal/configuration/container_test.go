package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContainerWithMemoryStore(t *testing.T) {
	cfg := &Config{
		Store:     StoreMemory,
		Auth:      AuthConfig{JWTSecret: "container-secret"},
		Retention: RetentionConfig{Enabled: true, Cron: "0 0 1 1 *"},
	}
	require.NoError(t, cfg.Validate())

	c, err := BuildContainer(cfg)
	require.NoError(t, err)

	assert.NotNil(t, c.Gateway)
	assert.NotNil(t, c.ConversationHandler)
	assert.NotNil(t, c.MessageHandler)
	assert.NotNil(t, c.NotificationHandler)
	assert.NotNil(t, c.MonitorHandler)
	assert.NotNil(t, c.Retention)

	token, err := c.Verifier.Issue("alice", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.NoError(t, c.Close())
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)

	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
