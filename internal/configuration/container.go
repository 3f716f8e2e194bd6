package configuration

import (
	"context"
	"fmt"
	"time"

	"Kaupa/internal/auth"
	"Kaupa/internal/db"
	"Kaupa/internal/handler"
	"Kaupa/internal/hub"
	"Kaupa/internal/model"
	"Kaupa/internal/repo"
	"Kaupa/internal/service"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Container wires the whole application together and owns the shared
// clients' lifecycles.
type Container struct {
	Config *Config
	Logger *zap.Logger

	Hub        *hub.Hub
	Chat       *service.ChatService
	OrderRelay *service.OrderRelay
	Tokens     *auth.TokenManager

	ChatHandler    *handler.ChatHandler
	WsHandler      *handler.WsHandler
	MonitorHandler *handler.MonitorHandler

	database    *mongo.Database
	redisClient *redis.Client

	ingressCancel context.CancelFunc
}

// BuildContainer constructs every component in dependency order. It fails
// fast: an unreachable store at startup is a deploy problem, not something
// to limp through.
func BuildContainer(cfg *Config) (*Container, error) {
	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	database, err := db.OpenConnection(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	conversations := repo.NewConversationRepository(
		db.NewRepository[model.Conversation](database, cfg.Mongo.ConversationsCollection),
		logger,
	)
	messages := repo.NewMessageRepository(
		db.NewRepository[model.Message](database, cfg.Mongo.MessagesCollection),
		db.NewRepository[bson.M](database, cfg.Mongo.CountersCollection),
		logger,
	)
	unread := repo.NewUnreadRepository(redisClient, logger)
	orderStream := repo.NewOrderStream(redisClient, cfg.Redis.OrdersChannel, logger)

	h := hub.NewHub(conversations.IsParticipant, logger)

	chat := service.NewChatService(conversations, messages, unread, h, logger)
	orderRelay := service.NewOrderRelay(h, orderStream, logger)
	h.SetOrderSink(orderRelay)

	ingressCtx, ingressCancel := context.WithCancel(context.Background())
	orderRelay.RunIngress(ingressCtx)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Hub:            h,
		Chat:           chat,
		OrderRelay:     orderRelay,
		Tokens:         tokens,
		ChatHandler:    handler.NewChatHandler(chat, logger),
		WsHandler:      handler.NewWsHandler(h, tokens, logger),
		MonitorHandler: handler.NewMonitorHandler(h),
		database:       database,
		redisClient:    redisClient,
		ingressCancel:  ingressCancel,
	}, nil
}

// Close tears everything down: ingress first so no event arrives for a
// stopped hub, then connections, then clients.
func (c *Container) Close() {
	c.ingressCancel()
	c.Hub.Stop()

	if err := c.redisClient.Close(); err != nil {
		c.Logger.Warn("redis close failed", zap.Error(err))
	}

	disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.database.Client().Disconnect(disconnectCtx); err != nil {
		c.Logger.Warn("mongo disconnect failed", zap.Error(err))
	}

	_ = c.Logger.Sync()
}

func buildLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
