// Package accountstore собирает ядро хранилища учетных записей:
// базу, кеш, брокер резервных копий, сервисы, служебный HTTP-сервер
// и периодическую чистку рекламного потока.
package accountstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/wolfstream/account-store/internal/cache"
	"github.com/wolfstream/account-store/internal/config"
	"github.com/wolfstream/account-store/internal/migrations"
	"github.com/wolfstream/account-store/internal/rabbitmq"
	accountservice "github.com/wolfstream/account-store/internal/services/account"
	adflowservice "github.com/wolfstream/account-store/internal/services/adflow"
	adminservice "github.com/wolfstream/account-store/internal/services/admin"
	backupservice "github.com/wolfstream/account-store/internal/services/backup"
	quotaservice "github.com/wolfstream/account-store/internal/services/quota"
	statsservice "github.com/wolfstream/account-store/internal/services/stats"
	"github.com/wolfstream/account-store/internal/storage/repository"
)

// SweepInterval — период запуска чистки просроченных сессий и кодов.
const SweepInterval = 10 * time.Minute

// App инкапсулирует собранное приложение.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	adflow *adflowservice.AdFlowService
}

func waitForDB(db *repository.Storage) error {
	for i := 0; i < 10; i++ {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает приложение: подключает хранилище, применяет миграции,
// поднимает кеш и канал брокера, связывает сервисы общим write-гейтом
// и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = waitForDB(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	notifier := backupservice.NewBackupService(ch)

	// Один write-гейт на все мутирующие сервисы: см. модель
	// сериализации записей.
	gate := &sync.Mutex{}

	adminService := adminservice.NewAdminService(db, cacheRedis, gate, logger)
	accountService := accountservice.NewAccountService(db, cacheRedis, notifier, adminService, gate, logger)
	quotaService := quotaservice.NewQuotaService(db, accountService, cacheRedis, notifier, gate, logger)
	adflowService := adflowservice.NewAdFlowService(db, cacheRedis, gate, logger)
	statsService := statsservice.NewStatsService(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, accountService, adminService, quotaService, statsService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		adflow: adflowService,
	}, nil
}

// Run запускает HTTP-сервер и фоновую чистку; блокируется до отмены
// контекста или фатальной ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	go a.adflow.RunSweeper(ctx, SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.conn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
