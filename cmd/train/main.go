// Command train fits the session conversion pipeline and writes the model
// artifact the prediction service loads.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"sberauto/predictor/artifact"
	"sberauto/predictor/config"
	"sberauto/predictor/database"
	"sberauto/predictor/dataset"
	"sberauto/predictor/gbm"
	"sberauto/predictor/models"
	"sberauto/predictor/pipeline"
	"sberauto/predictor/store"
)

func main() {
	fmt.Println(artifact.ModelName)

	bootLog, _ := zap.NewProduction()
	config.LoadDotEnv(bootLog)

	cfg, err := config.LoadTrain()
	if err != nil {
		bootLog.Fatal("failed to load config", zap.Error(err))
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		bootLog.Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("training failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Train, log *zap.Logger) error {
	sessions, labels, err := loadData(ctx, cfg, log)
	if err != nil {
		return err
	}

	records, y := dataset.Join(sessions, labels)
	log.Info("training table built",
		zap.Int("sessions", len(sessions)),
		zap.Int("labeled_sessions", len(labels)),
		zap.Int("rows", len(records)),
		zap.Int("positives", labels.Positives()))

	clfCfg, err := gbm.LoadConfig(cfg.ClassifierConfigPath)
	if err != nil {
		return err
	}

	model := pipeline.New(clfCfg)
	start := time.Now()
	if err := model.Fit(records, y, log); err != nil {
		return err
	}
	log.Info("pipeline fitted",
		zap.Duration("took", time.Since(start)),
		zap.Int("trees", len(model.Classifier.Trees)),
		zap.Int("one_hot_columns", model.Preprocessor.BinaryWidth()))

	report, err := model.Evaluate(ctx, records, y)
	if err != nil {
		return fmt.Errorf("failed to evaluate pipeline: %w", err)
	}
	log.Info("training set metrics",
		zap.Float64("accuracy", report.Accuracy),
		zap.Float64("roc_auc", report.ROCAUC))

	a := &artifact.Artifact{
		Model:    model,
		Metadata: artifact.NewMetadata(time.Now()),
	}
	if err := artifact.Save(cfg.ArtifactPath, a); err != nil {
		return err
	}
	log.Info("artifact written", zap.String("path", cfg.ArtifactPath))

	if cfg.DatabaseURL != "" {
		if err := publishFirstMonths(ctx, cfg.DatabaseURL, model, log); err != nil {
			return err
		}
	}
	return nil
}

func loadData(ctx context.Context, cfg config.Train, log *zap.Logger) ([]models.SessionRecord, dataset.Labels, error) {
	if cfg.Source == "clickhouse" {
		chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, log)
		if err != nil {
			return nil, nil, err
		}
		defer chClient.Close()

		sessionStore := store.NewSessionStore(chClient)
		sessions, err := sessionStore.LoadSessions(ctx)
		if err != nil {
			return nil, nil, err
		}
		labels, err := sessionStore.LoadLabels(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sessions, labels, nil
	}

	sessions, err := dataset.ReadSessionsFile(cfg.SessionsPath)
	if err != nil {
		return nil, nil, err
	}
	labels, err := dataset.ReadLabelsFile(cfg.HitsPath)
	if err != nil {
		return nil, nil, err
	}
	return sessions, labels, nil
}

// publishFirstMonths mirrors the client lookup to Postgres for services
// configured with DATABASE_URL.
func publishFirstMonths(ctx context.Context, dbURL string, model *pipeline.Pipeline, log *zap.Logger) error {
	dbClient, err := database.NewPostgresDB(ctx, dbURL, log)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	clients := store.NewClientStore(dbClient.DB)
	if err := clients.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := clients.SaveFirstMonths(ctx, model.FirstMonths); err != nil {
		return err
	}
	log.Info("first months published", zap.Int("clients", len(model.FirstMonths)))
	return nil
}
