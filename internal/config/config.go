package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	R2        R2Config
}

type ServerConfig struct {
	Port string
	Env  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	WalletPerMin int
	SplitPerHour int
}

// StorageConfig selects the record store backend for wallets and jobs.
type StorageConfig struct {
	Backend string // "memory", "file" or "redis"
	Dir     string // data directory for the file backend
}

// WorkerConfig points at the external split-worker service.
type WorkerConfig struct {
	BaseURL        string
	Secret         string
	Timeout        int    // seconds per request
	ReconcileEvery string // asynq scheduler spec, e.g. "@every 1m"
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "4000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("ratelimit.wallet_per_min", 60)
	viper.SetDefault("ratelimit.split_per_hour", 10)
	viper.SetDefault("storage.backend", "redis")
	viper.SetDefault("storage.dir", "/tmp/musichub_data")
	viper.SetDefault("worker.base_url", "http://localhost:8000")
	viper.SetDefault("worker.secret", "")
	viper.SetDefault("worker.timeout", 30)
	viper.SetDefault("worker.reconcile_every", "@every 1m")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			WalletPerMin: viper.GetInt("ratelimit.wallet_per_min"),
			SplitPerHour: viper.GetInt("ratelimit.split_per_hour"),
		},
		Storage: StorageConfig{
			Backend: viper.GetString("storage.backend"),
			Dir:     viper.GetString("storage.dir"),
		},
		Worker: WorkerConfig{
			BaseURL:        viper.GetString("worker.base_url"),
			Secret:         viper.GetString("worker.secret"),
			Timeout:        viper.GetInt("worker.timeout"),
			ReconcileEvery: viper.GetString("worker.reconcile_every"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}
