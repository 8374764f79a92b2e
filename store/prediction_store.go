package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sberauto/predictor/database"
	"sberauto/predictor/models"
)

const predictionsDDL = `
	CREATE TABLE IF NOT EXISTS predictions (
		event_id      String,
		session_id    String,
		client_id     String,
		pred          UInt8,
		probability   Float64,
		model_version Int32,
		ip_address    String,
		timestamp     DateTime64(3)
	) ENGINE = MergeTree
	ORDER BY (timestamp, session_id)
`

const insertPredictionsQuery = `
	INSERT INTO predictions (
		event_id, session_id, client_id, pred, probability, model_version, ip_address, timestamp
	)
`

// PredictionStore is the audit log of served predictions.
type PredictionStore struct {
	DB  *database.ClickHouseClient
	log *zap.Logger

	// waitAsync makes LogPrediction block until the server has flushed the
	// async insert buffer.
	waitAsync bool
}

func NewPredictionStore(chClient *database.ClickHouseClient, log *zap.Logger) *PredictionStore {
	return &PredictionStore{DB: chClient, log: log}
}

func (s *PredictionStore) EnsureSchema(ctx context.Context) error {
	if err := s.DB.Conn.Exec(ctx, predictionsDDL); err != nil {
		return fmt.Errorf("failed to create predictions table: %w", err)
	}
	return nil
}

func (s *PredictionStore) InsertPredictions(ctx context.Context, events []models.PredictionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, insertPredictionsQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			e.EventID,
			e.SessionID,
			e.ClientID,
			e.Pred,
			e.Probability,
			int32(e.ModelVersion),
			e.IPAddress,
			e.Timestamp,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append prediction %s: %w", e.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.log.Debug("inserted prediction events", zap.Int("count", len(events)))
	return nil
}

// LogPrediction records a single prediction on the request path. It uses a
// server-side async insert, so ClickHouse buffers rows from many requests
// into one part and the call returns once the row is queued.
func (s *PredictionStore) LogPrediction(ctx context.Context, e models.PredictionEvent) error {
	err := s.DB.Conn.AsyncInsert(ctx, insertPredictionsQuery+" VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.waitAsync,
		e.EventID,
		e.SessionID,
		e.ClientID,
		e.Pred,
		e.Probability,
		int32(e.ModelVersion),
		e.IPAddress,
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to queue prediction %s: %w", e.EventID, err)
	}
	return nil
}
