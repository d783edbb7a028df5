package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultMaxImageBytes is the default per-image size budget (256 KiB).
const DefaultMaxImageBytes = 262144

type Config struct {
	Addr          string
	DatabaseURL   string
	StorageDir    string
	MaxImageBytes int64
	JWTSecret     string
	PublicBaseURL string
	FetchWorkers  int
	CacheEntries  int
}

// Load reads .env (if present) and the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	return Config{
		Addr:          getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "host=localhost port=5432 user=imageuser password=imagepass dbname=imagedb sslmode=disable"),
		StorageDir:    getEnv("STORAGE_DIR", "./storage/images"),
		MaxImageBytes: getEnvInt64("MAX_IMAGE_BYTES", DefaultMaxImageBytes),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		FetchWorkers:  int(getEnvInt64("FETCH_WORKERS", 4)),
		CacheEntries:  int(getEnvInt64("CACHE_ENTRIES", 256)),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
