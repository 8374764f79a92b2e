// predictor/config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Server holds the inference service settings.
type Server struct {
	Port           string `env:"PORT" envDefault:"8080"`
	GinMode        string `env:"GIN_MODE"`
	ModelPath      string `env:"MODEL_PATH" envDefault:"model/sber_auto_pipe.zst"`
	FrontendOrigin string `env:"FE_ORIGIN"`
	PredictionLog  bool   `env:"PREDICTION_LOG" envDefault:"false"`
	DatabaseURL    string `env:"DATABASE_URL"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	ClickHouse ClickHouse
}

// Train holds the training job settings. Paths default to the fixed
// locations the job has always used.
type Train struct {
	SessionsPath         string `env:"SESSIONS_PATH" envDefault:"data/ga_sessions.csv"`
	HitsPath             string `env:"HITS_PATH" envDefault:"data/ga_hits.csv"`
	ClassifierConfigPath string `env:"CLASSIFIER_CONFIG_PATH" envDefault:"xgb_model.json"`
	ArtifactPath         string `env:"ARTIFACT_PATH" envDefault:"sber_auto_pipe.zst"`
	Source               string `env:"TRAIN_SOURCE" envDefault:"csv"`
	DatabaseURL          string `env:"DATABASE_URL"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`

	ClickHouse ClickHouse
}

// ClickHouse holds the native protocol connection settings.
type ClickHouse struct {
	Host       string `env:"CLICKHOUSE_HOST"`
	NativePort int    `env:"CLICKHOUSE_NATIVE_PORT" envDefault:"9000"`
	DBName     string `env:"CLICKHOUSE_DB_NAME"`
	Username   string `env:"CLICKHOUSE_USERNAME"`
	Password   string `env:"CLICKHOUSE_PASSWORD"`
}

// LoadDotEnv reads a .env file if one exists. A missing file is not an error.
func LoadDotEnv(log *zap.Logger) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", zap.Error(err))
	}
}

func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("failed to parse server config: %w", err)
	}
	return cfg, nil
}

func LoadTrain() (Train, error) {
	var cfg Train
	if err := env.Parse(&cfg); err != nil {
		return Train{}, fmt.Errorf("failed to parse training config: %w", err)
	}
	if cfg.Source != "csv" && cfg.Source != "clickhouse" {
		return Train{}, fmt.Errorf("invalid TRAIN_SOURCE %q: must be csv or clickhouse", cfg.Source)
	}
	return cfg, nil
}

// NewLogger builds a production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
