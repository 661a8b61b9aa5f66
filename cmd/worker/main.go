package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/config"
	"github.com/UnendingLoop/Watermarker/internal/kafka"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/repository"
	"github.com/UnendingLoop/Watermarker/internal/service"
	"github.com/UnendingLoop/Watermarker/internal/storage"
	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
	"github.com/UnendingLoop/Watermarker/internal/video"
	"github.com/UnendingLoop/Watermarker/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const resultPrefix = "result/"

func main() {
	// инициализировать конфиг/ считать энвы
	cfg := config.Load(config.Open("./.env"))

	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(cfg.PostgresDSN, 5, 10*time.Second)
	// подкллючиться к хранилищу
	strg, err := storage.NewObjectStorage(ctx, miniostorage.Options{
		Addr:   cfg.MinioAddr,
		User:   cfg.MinioUser,
		Pass:   cfg.MinioPass,
		Bucket: cfg.BucketName,
	}, 10*time.Second)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to object storage")
	}
	// создаем экземпляр репо
	repo := repository.NewPostgresJobRepo(dbConn)
	// создаем экземпляр сервиса - воркеру нужны только операции над задачей
	var svc VideoWorkerService = service.NewWatermarkService(service.Deps{
		Repo:      repo,
		Publisher: NoopPublisher{},
		Storage:   strg,
	})

	// пайплайн: ffmpeg снаружи, движок наложения внутри
	codec := video.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	pipeline := video.NewPipeline(codec, render.NewEngine(cfg.Render), cfg.Limits)

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, cfg.KafkaBroker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is not available")
	}
	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{cfg.KafkaBroker}, cfg.KafkaTopic, cfg.KafkaGroupID)
	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем нужное число циклов
	wrk := worker.NewWorkerInstance(strg, svc, pipeline, queue, cons, cfg.TempDir, resultPrefix)
	var wg sync.WaitGroup
	for range max(cfg.WorkerConcurrency, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wrk.StartWorker(ctx)
		}()
	}
	zlog.Logger.Info().Int("loops", max(cfg.WorkerConcurrency, 1)).Msg("Video worker started")

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()
	// начатые задачи доделываются до конца
	wg.Wait()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
