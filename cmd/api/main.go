// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/cache"
	"github.com/UnendingLoop/Watermarker/internal/config"
	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/kafka"
	"github.com/UnendingLoop/Watermarker/internal/mwlogger"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/settings"
	"github.com/UnendingLoop/Watermarker/internal/storage"
	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
	"github.com/UnendingLoop/Watermarker/internal/transport"
	"github.com/UnendingLoop/Watermarker/internal/workerpool"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

type closableCache interface {
	service.RenderCache
	Close() error
}

func main() {
	// инициализировать конфиг/ считать энвы
	cfg := config.Load(config.Open("./.env"))

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(cfg.PostgresDSN, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)

	// подключиться к хранилищу
	strg, err := storage.NewObjectStorage(ctx, miniostorage.Options{
		Addr:   cfg.MinioAddr,
		User:   cfg.MinioUser,
		Pass:   cfg.MinioPass,
		Bucket: cfg.BucketName,
	}, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to object storage")
	}

	// кэш опционален - без редиса просто рендерим каждый раз
	var rCache closableCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			zlog.Logger.Warn().Err(err).Msg("Redis unavailable, render cache disabled")
		} else {
			rCache = rc
		}
	}

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, cfg.KafkaBroker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is not available")
	}
	// подключиться к кафке как продюсер
	kafka.InitKafkaTopics(ctx, cfg.KafkaBroker, 10*time.Second, cfg.KafkaTopic)
	pub := wbfkafka.NewProducer([]string{cfg.KafkaBroker}, cfg.KafkaTopic)

	// движок и пул под рендер картинок
	engine := render.NewEngine(cfg.Render)
	pool := workerpool.New(cfg.RenderWorkers)
	pool.Start(ctx)

	// создаем экземпляр сервиса
	var svc WatermarkAPIService = service.NewWatermarkService(service.Deps{
		Repo:      repo,
		Publisher: pub,
		Storage:   strg,
		Settings:  settings.NewMemoryStore(),
		Fonts:     fontres.New(cfg.FontPath),
		Renderer:  engine,
		Pool:      pool,
		Cache:     rCache,
		MaxVideo:  cfg.Limits.MaxBytes,
	})

	// cоздаем экземпляр хендлера HTTP
	limiter := transport.NewRateLimiter(cfg.RatePerSec, cfg.RateBurst)
	handlers := transport.NewWatermarkHandler(svc, limiter)

	// сетапим сервер
	router := ginext.New(cfg.GinMode)

	router.GET("/ping", handlers.SimplePinger)
	router.GET("/users/:uid/settings", handlers.GetSettings)
	router.PATCH("/users/:uid/settings", handlers.PatchSettings)
	router.POST("/users/:uid/images", handlers.RenderImage) // ответ сразу jpeg
	router.POST("/users/:uid/videos", handlers.SubmitVideo) // задача в очередь, 202
	router.PUT("/font", handlers.ReplaceFont)
	router.GET("/videos/:id", handlers.GetJob)
	router.GET("/videos/:id/result", handlers.LoadResult)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mwlogger.NewMWLogger(router),
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Msgf("Server running on http://localhost%s", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// запускаем фонового воркера для отслеживания подвисших задач
	go recoveryLoop(ctx, svc)

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server")
	}
	limiter.Stop()
	pool.Stop()

	shutdown(pub, dbConn, rCache)
	zlog.Logger.Info().Msg("Exiting api...")
}

func recoveryLoop(ctx context.Context, svc WatermarkAPIService) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Recovery loop crashed")
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(ctx, 20)
		}
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB, rCache closableCache) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-writer")
	}
	zlog.Logger.Info().Msg("Kafka-producer connection closed.")

	if err := rCache.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Redis-conn")
	}

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
