package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Yerassyl-hub/backofadilai/internal/config"
	"github.com/Yerassyl-hub/backofadilai/internal/model"
	mysqlClient "github.com/Yerassyl-hub/backofadilai/internal/platform/mysql"
	rabbitmqClient "github.com/Yerassyl-hub/backofadilai/internal/platform/rabbitmq"
	redisClient "github.com/Yerassyl-hub/backofadilai/internal/platform/redis"
	"github.com/Yerassyl-hub/backofadilai/internal/repository"
	"github.com/Yerassyl-hub/backofadilai/internal/worker"
)

type App struct {
	Config     *config.Config
	MySQL      *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	CallWorker *worker.LLMCallPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.LLMCall{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	callRepo := repository.NewLLMCallRepository(mysqlDB)
	callWorker := worker.NewLLMCallPersistWorker(mqConn, callRepo, cfg.RabbitMQ.LLMCallQueue)
	if err := callWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start llm call worker failed: %w", err)
	}

	return &App{
		Config:     cfg,
		MySQL:      mysqlDB,
		Redis:      redisCli,
		MQConn:     mqConn,
		CallWorker: callWorker,
		StartedAt:  time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.CallWorker != nil {
		a.CallWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
