// backend-go/internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Solver   SolverConfig
	Planner  PlannerConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	// Driver selects the repository backend: postgres or memory.
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN is the libpq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AppConfig struct {
	DataDir  string
	LogLevel string
}

type CacheConfig struct {
	Enabled        bool
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	PlanTTLSeconds int
}

type SolverConfig struct {
	Engine           string
	TimeLimitSeconds float64
	Presolve         bool
	Verbosity        int
	RemoteURL        string
	// MIPGap is the relative optimality gap handed to the engine. Negative values are read as zero.
	MIPGap float64
}

// TimeLimit falls back to three seconds when unset or invalid.
func (c SolverConfig) TimeLimit() time.Duration {
	if c.TimeLimitSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.TimeLimitSeconds * float64(time.Second))
}

type PlannerConfig struct {
	Days []string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	CredentialsFile string
	FolderID        string
}

type MetricsConfig struct {
	Enabled bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		instance = read(viper.GetViper())

		// Ensure the local export directory exists
		ensureDir(instance.App.DataDir)
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("REPOSITORY_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mixplan")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_PLAN_TTL_SECONDS", 600)
	v.SetDefault("SOLVER_ENGINE", "simplex")
	v.SetDefault("SOLVER_TIME_LIMIT_SECONDS", 3)
	v.SetDefault("SOLVER_PRESOLVE", true)
	v.SetDefault("SOLVER_VERBOSITY", 0)
	v.SetDefault("SOLVER_REMOTE_URL", "")
	v.SetDefault("SOLVER_MIP_GAP", 0.005)
	v.SetDefault("PLANNER_DAYS", strings.Join(domain.DefaultDays, ","))
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "mixplan-exports")
	v.SetDefault("STORAGE_REGION", "")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")
	v.SetDefault("METRICS_ENABLED", true)
}

func read(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("REPOSITORY_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			DataDir:  v.GetString("APP_DATA_DIR"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Cache: CacheConfig{
			Enabled:        v.GetBool("CACHE_ENABLED"),
			RedisURL:       v.GetString("REDIS_URL"),
			RedisHost:      v.GetString("REDIS_HOST"),
			RedisPort:      v.GetString("REDIS_PORT"),
			RedisPassword:  v.GetString("REDIS_PASSWORD"),
			RedisDB:        v.GetInt("REDIS_DB"),
			PlanTTLSeconds: v.GetInt("CACHE_PLAN_TTL_SECONDS"),
		},
		Solver: SolverConfig{
			Engine:           v.GetString("SOLVER_ENGINE"),
			TimeLimitSeconds: v.GetFloat64("SOLVER_TIME_LIMIT_SECONDS"),
			Presolve:         v.GetBool("SOLVER_PRESOLVE"),
			Verbosity:        v.GetInt("SOLVER_VERBOSITY"),
			RemoteURL:        v.GetString("SOLVER_REMOTE_URL"),
			MIPGap:           v.GetFloat64("SOLVER_MIP_GAP"),
		},
		Planner: PlannerConfig{
			Days: parseDays(v.GetString("PLANNER_DAYS")),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("DRIVE_CREDENTIALS_JSON"),
			CredentialsFile: v.GetString("DRIVE_CREDENTIALS_FILE"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}

// parseDays splits a comma separated list of day keys, falling back to the default week.
func parseDays(raw string) []string {
	var days []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return append([]string(nil), domain.DefaultDays...)
	}
	return days
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
