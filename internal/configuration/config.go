package configuration

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, loaded from a JSON file with
// environment variables taking precedence. Secrets only ever come from the
// environment.
type Config struct {
	Server ServerConfig `json:"server"`
	Mongo  MongoConfig  `json:"mongo"`
	Redis  RedisConfig  `json:"redis"`
	Auth   AuthConfig   `json:"auth"`
	Log    LogConfig    `json:"log"`
}

type ServerConfig struct {
	WsPort  int `json:"wsPort"`
	AppPort int `json:"appPort"`
}

type MongoConfig struct {
	URI                     string `json:"uri"`
	Database                string `json:"database"`
	ConversationsCollection string `json:"conversationsCollection"`
	MessagesCollection      string `json:"messagesCollection"`
	CountersCollection      string `json:"countersCollection"`
}

type RedisConfig struct {
	Addr          string `json:"addr"`
	Password      string `json:"password"`
	DB            int    `json:"db"`
	OrdersChannel string `json:"ordersChannel"`
}

type AuthConfig struct {
	JWTSecret string `json:"-"`
}

type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Load reads configuration from path, applies environment overrides, and
// validates. A missing file is not fatal; defaults plus environment must
// then cover everything.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional, real env always wins

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			WsPort:  8080,
			AppPort: 8081,
		},
		Mongo: MongoConfig{
			URI:                     "mongodb://localhost:27017",
			Database:                "kaupa_chat",
			ConversationsCollection: "conversations",
			MessagesCollection:      "messages",
			CountersCollection:      "counters",
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			OrdersChannel: "orders:status",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.WsPort = port
		}
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.AppPort = port
		}
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		cfg.Mongo.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("ORDERS_CHANNEL"); v != "" {
		cfg.Redis.OrdersChannel = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		cfg.Log.Development = v == "true" || v == "1"
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Server.WsPort == c.Server.AppPort {
		return fmt.Errorf("websocket and app servers need distinct ports")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("mongo uri and database must be set")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr must be set")
	}
	return nil
}
