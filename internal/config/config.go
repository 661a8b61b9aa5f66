// Package config maps environment settings onto a typed App config
package config

import (
	"log"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/video"
	wbfconfig "github.com/wb-go/wbf/config"
)

// Source - откуда читаем значения, в проде это *wbfconfig.Config
type Source interface {
	SetDefault(key string, value any)
	GetString(key string) string
	GetInt(key string) int
	GetInt64(key string) int64
	GetFloat64(key string) float64
	GetDuration(key string) time.Duration
}

type App struct {
	Port     string
	GinMode  string
	LogLevel string

	PostgresDSN string

	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string

	BucketName string
	MinioUser  string
	MinioPass  string
	MinioAddr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	FontPath string
	TempDir  string

	Limits            video.Limits
	RenderWorkers     int
	WorkerConcurrency int
	Render            render.Options

	RatePerSec float64
	RateBurst  int

	FFmpegPath  string
	FFprobePath string
}

// Open reads env and the optional .env file at path.
func Open(path string) *wbfconfig.Config {
	cfg := wbfconfig.New()
	cfg.EnableEnv("")
	if err := cfg.LoadEnvFiles(path); err != nil {
		// в контейнере .env может не быть, все приходит через окружение
		log.Printf("Failed to load env file %q: %v. Using environment only", path, err)
	}
	return cfg
}

// SetDefaults registers a default for every key except credentials.
func SetDefaults(src Source) {
	def := render.DefaultOptions()

	src.SetDefault("APP_PORT", "8080")
	src.SetDefault("GIN_MODE", "release")
	src.SetDefault("LOG_LEVEL", "info")

	src.SetDefault("KAFKA_BROKER", "kafka:9092")
	src.SetDefault("KAFKA_TOPIC", "video-jobs")
	src.SetDefault("KAFKA_GROUPID", "watermark-workers")

	src.SetDefault("BUCKET_NAME", "watermarks")
	src.SetDefault("MINIO_CONTAINER_NAME", "minio")

	src.SetDefault("REDIS_DB", 0)
	src.SetDefault("CACHE_TTL", 10*time.Minute)

	src.SetDefault("FONT_PATH", "./data/font.ttf")

	src.SetDefault("MAX_VIDEO_BYTES", video.DefaultMaxBytes)
	src.SetDefault("MAX_VIDEO_SECONDS", int(video.DefaultMaxDuration/time.Second))
	src.SetDefault("RENDER_WORKERS", 0) // 0 - по ядру на воркер
	src.SetDefault("WORKER_CONCURRENCY", 1)

	src.SetDefault("WM_ALPHA", int(def.Alpha))
	src.SetDefault("WM_PADDING_RATIO", def.PaddingRatio)
	src.SetDefault("WM_MIN_PADDING", def.MinPadding)
	src.SetDefault("WM_GAP_FACTOR", def.GapFactor)
	src.SetDefault("WM_TILE_MARGIN", def.TileMargin)
	src.SetDefault("JPEG_QUALITY", def.JPEGQuality)

	src.SetDefault("RATE_PER_SEC", 2.0)
	src.SetDefault("RATE_BURST", 5)

	src.SetDefault("FFMPEG_PATH", "ffmpeg")
	src.SetDefault("FFPROBE_PATH", "ffprobe")
}

// Load maps src onto App. CACHE_TTL takes Go durations ("90s", "10m").
func Load(src Source) App {
	SetDefaults(src)

	return App{
		Port:     src.GetString("APP_PORT"),
		GinMode:  src.GetString("GIN_MODE"),
		LogLevel: src.GetString("LOG_LEVEL"),

		PostgresDSN: src.GetString("POSTGRES_DSN"),

		KafkaBroker:  src.GetString("KAFKA_BROKER"),
		KafkaTopic:   src.GetString("KAFKA_TOPIC"),
		KafkaGroupID: src.GetString("KAFKA_GROUPID"),

		BucketName: src.GetString("BUCKET_NAME"),
		MinioUser:  src.GetString("MINIO_USER"),
		MinioPass:  src.GetString("MINIO_PASS"),
		MinioAddr:  src.GetString("MINIO_CONTAINER_NAME"),

		RedisAddr:     src.GetString("REDIS_ADDR"),
		RedisPassword: src.GetString("REDIS_PASSWORD"),
		RedisDB:       src.GetInt("REDIS_DB"),
		CacheTTL:      src.GetDuration("CACHE_TTL"),

		FontPath: src.GetString("FONT_PATH"),
		TempDir:  src.GetString("TEMP_DIR"),

		Limits: video.Limits{
			MaxBytes:    src.GetInt64("MAX_VIDEO_BYTES"),
			MaxDuration: time.Duration(src.GetInt("MAX_VIDEO_SECONDS")) * time.Second,
		},
		RenderWorkers:     src.GetInt("RENDER_WORKERS"),
		WorkerConcurrency: src.GetInt("WORKER_CONCURRENCY"),
		Render: render.Options{
			Alpha:        uint8(min(max(src.GetInt("WM_ALPHA"), 1), 255)),
			PaddingRatio: src.GetFloat64("WM_PADDING_RATIO"),
			MinPadding:   src.GetInt("WM_MIN_PADDING"),
			GapFactor:    src.GetFloat64("WM_GAP_FACTOR"),
			TileMargin:   src.GetInt("WM_TILE_MARGIN"),
			JPEGQuality:  src.GetInt("JPEG_QUALITY"),
		},

		RatePerSec: src.GetFloat64("RATE_PER_SEC"),
		RateBurst:  src.GetInt("RATE_BURST"),

		FFmpegPath:  src.GetString("FFMPEG_PATH"),
		FFprobePath: src.GetString("FFPROBE_PATH"),
	}
}
