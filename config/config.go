package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr  string
	WebAppDir string // 前端页面目录

	// 媒体处理
	FFmpegPath  string
	FFprobePath string
	YtdlpPath   string // 为空时使用 PATH 中的 yt-dlp
	OutputFPS   int    // Remux 输出的固定帧率
	TempDir     string // 每个任务的工作目录都建在这里
	WorkDirTTL  time.Duration

	// 外部模型服务
	ColorizerURL     string
	ColorizerTimeout time.Duration // 0 表示不设超时
	RestorerURL      string
	RestorerTimeout  time.Duration
	ModelDevice      string // cpu / gpu0

	// 上传大小限制 (bytes)
	MaxImageUpload int64
	MaxVideoUpload int64
	MaxAudioUpload int64

	// 结果存储
	StorageBackend string // minio / local
	LocalStoreDir  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 数据库配置
	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// 鉴权
	JWTSecret         string
	DownloadTokenTTL  time.Duration
	AdminPasswordHash string // bcrypt, 为空时禁用管理接口

	// 日志
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int

	ProgressPoll time.Duration
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration 支持 "30s"、"6h" 这种写法
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// DefaultJWTSecret 只用于本地开发，部署时必须通过 JWT_SECRET 覆盖
const DefaultJWTSecret = "chroma-dev-secret"

// InsecureJWTSecret reports whether download tokens are signed with the built-in secret.
func (c *Config) InsecureJWTSecret() bool {
	return c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")

	return &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		WebAppDir: getEnv("WEB_APP_DIR", filepath.Join("web", "ui")),

		FFmpegPath:  ffmpegPath,
		FFprobePath: getEnv("FFPROBE_PATH", strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)),
		YtdlpPath:   getEnv("YTDLP_PATH", ""),
		OutputFPS:   getEnvInt("OUTPUT_FPS", 24),
		TempDir:     getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "chroma")),
		WorkDirTTL:  getEnvDuration("WORK_DIR_TTL", 6*time.Hour),

		ColorizerURL:     getEnv("COLORIZER_URL", "http://127.0.0.1:5000"),
		ColorizerTimeout: getEnvDuration("COLORIZER_TIMEOUT", 0),
		RestorerURL:      getEnv("RESTORER_URL", "http://127.0.0.1:5001"),
		RestorerTimeout:  getEnvDuration("RESTORER_TIMEOUT", 0),
		ModelDevice:      getEnv("MODEL_DEVICE", "cpu"),

		MaxImageUpload: getEnvInt64("MAX_IMAGE_UPLOAD", 5000*1024),
		MaxVideoUpload: getEnvInt64("MAX_VIDEO_UPLOAD", 200<<20),
		MaxAudioUpload: getEnvInt64("MAX_AUDIO_UPLOAD", 50<<20),

		StorageBackend: getEnv("STORAGE_BACKEND", "minio"),
		LocalStoreDir:  getEnv("LOCAL_STORE_DIR", "results"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "chroma"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBEnabled:  getEnvBool("DB_ENABLED", true),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "chroma"),

		JWTSecret:         getEnv("JWT_SECRET", DefaultJWTSecret),
		DownloadTokenTTL:  getEnvDuration("DOWNLOAD_TOKEN_TTL", 24*time.Hour),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),

		ProgressPoll: getEnvDuration("PROGRESS_POLL", time.Second),
	}
}
