package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type MongoConfig struct {
	Uri                     string `json:"uri" yaml:"uri"`
	Database                string `json:"database" yaml:"database"`
	ConversationsCollection string `json:"conversationsCollection" yaml:"conversations_collection"`
	MessagesCollection      string `json:"messagesCollection" yaml:"messages_collection"`
	NotificationsCollection string `json:"notificationsCollection" yaml:"notifications_collection"`
	UsersCollection         string `json:"usersCollection" yaml:"users_collection"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port" yaml:"app_port"`
	SocketPort     int      `json:"socket_port" yaml:"socket_port"`
	SocketRoute    string   `json:"socketRoute" yaml:"socket_route"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret   string   `json:"jwt_secret" yaml:"jwt_secret"`
	Leeway      Duration `json:"leeway" yaml:"leeway"`
	AuthTimeout Duration `json:"auth_timeout" yaml:"auth_timeout"`
}

type ChatConfig struct {
	Moderators     []string  `json:"moderators" yaml:"moderators"`
	MaxFrameSize   SizeBytes `json:"max_frame_size" yaml:"max_frame_size"`
	SendBufferSize int       `json:"send_buffer_size" yaml:"send_buffer_size"`
	RateLimit      float64   `json:"rate_limit" yaml:"rate_limit"`
	RateBurst      int       `json:"rate_burst" yaml:"rate_burst"`
	PongWait       Duration  `json:"pong_wait" yaml:"pong_wait"`
	WriteWait      Duration  `json:"write_wait" yaml:"write_wait"`
	HandlerTimeout Duration  `json:"handler_timeout" yaml:"handler_timeout"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

type RetentionConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Cron    string   `json:"cron" yaml:"cron"`
	MaxAge  Duration `json:"max_age" yaml:"max_age"`
}

type Config struct {
	Store        string          `json:"store" yaml:"store"`
	ChatDatabase MongoConfig     `json:"mongo" yaml:"mongo"`
	Server       ServerConfig    `json:"server" yaml:"server"`
	Auth         AuthConfig      `json:"auth" yaml:"auth"`
	Chat         ChatConfig      `json:"chat" yaml:"chat"`
	Log          LogConfig       `json:"log" yaml:"log"`
	Retention    RetentionConfig `json:"retention" yaml:"retention"`
}

// LoadConfig reads a JSON or YAML file (by extension), applies LIVESTREAM_*
// environment overrides and fills defaults. An empty path skips the file.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(filepath.Ext(configPath)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(file, &config)
		default:
			err = json.Unmarshal(file, &config)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ResolveConfigPath prefers the explicit path, then LIVESTREAM_CONFIG.
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv("LIVESTREAM_CONFIG")
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LIVESTREAM_STORE"); v != "" {
		c.Store = v
	}
	if v := os.Getenv("LIVESTREAM_MONGO_URI"); v != "" {
		c.ChatDatabase.Uri = v
	}
	if v := os.Getenv("LIVESTREAM_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	for env, dst := range map[string]*int{
		"LIVESTREAM_APP_PORT":    &c.Server.AppPort,
		"LIVESTREAM_SOCKET_PORT": &c.Server.SocketPort,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", env, v)
		}
		*dst = port
	}
	return nil
}

// Validate fills defaults and rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Store == "" {
		c.Store = StoreMongo
	}
	switch c.Store {
	case StoreMongo:
		if c.ChatDatabase.Uri == "" {
			return errors.New("mongo.uri is required for the mongo store")
		}
		if c.ChatDatabase.Database == "" {
			c.ChatDatabase.Database = "livestream"
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMongo, StoreMemory)
	}
	defaultString(&c.ChatDatabase.ConversationsCollection, "conversations")
	defaultString(&c.ChatDatabase.MessagesCollection, "messages")
	defaultString(&c.ChatDatabase.NotificationsCollection, "notifications")
	defaultString(&c.ChatDatabase.UsersCollection, "users")

	if c.Server.AppPort == 0 {
		c.Server.AppPort = 8080
	}
	if c.Server.SocketPort == 0 {
		c.Server.SocketPort = 8081
	}
	if c.Server.AppPort == c.Server.SocketPort {
		return fmt.Errorf("server.app_port and server.socket_port must differ (both %d)", c.Server.AppPort)
	}
	c.Server.SocketRoute = strings.TrimPrefix(c.Server.SocketRoute, "/")
	defaultString(&c.Server.SocketRoute, "ws")

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	defaultDuration(&c.Auth.AuthTimeout, "10s")

	if c.Chat.MaxFrameSize == 0 {
		c.Chat.MaxFrameSize = 64 * 1024
	}
	if c.Chat.SendBufferSize <= 0 {
		c.Chat.SendBufferSize = 256
	}
	if c.Chat.RateLimit < 0 {
		return errors.New("chat.rate_limit must not be negative")
	}
	if c.Chat.RateLimit == 0 {
		c.Chat.RateLimit = 20
	}
	if c.Chat.RateBurst <= 0 {
		c.Chat.RateBurst = 40
	}
	defaultDuration(&c.Chat.PongWait, "60s")
	defaultDuration(&c.Chat.WriteWait, "10s")
	defaultDuration(&c.Chat.HandlerTimeout, "15s")

	defaultString(&c.Log.Level, "info")

	defaultString(&c.Retention.Cron, "0 3 * * *")
	defaultDuration(&c.Retention.MaxAge, "720h")
	if !gronx.IsValid(c.Retention.Cron) {
		return fmt.Errorf("invalid retention cron expression: %s", c.Retention.Cron)
	}
	return nil
}

func defaultString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func defaultDuration(v *Duration, def string) {
	if *v == 0 {
		_ = v.parse(def)
	}
}
