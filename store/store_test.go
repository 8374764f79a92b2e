package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sberauto/predictor/config"
	"sberauto/predictor/database"
	"sberauto/predictor/features"
	"sberauto/predictor/models"
)

// These tests need live databases and are skipped unless
// DATABASE_TEST_URL or CLICKHOUSE_TEST_HOST is set.

func postgresClient(t *testing.T) *database.DBClient {
	t.Helper()
	url := os.Getenv("DATABASE_TEST_URL")
	if url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	client, err := database.NewPostgresDB(context.Background(), url, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func clickHouseClient(t *testing.T) *database.ClickHouseClient {
	t.Helper()
	host := os.Getenv("CLICKHOUSE_TEST_HOST")
	if host == "" {
		t.Skip("CLICKHOUSE_TEST_HOST not set")
	}
	port := 9000
	if p := os.Getenv("CLICKHOUSE_TEST_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}
	client, err := database.NewClickHouseDB(context.Background(), config.ClickHouse{
		Host:       host,
		NativePort: port,
		DBName:     "default",
		Username:   os.Getenv("CLICKHOUSE_TEST_USERNAME"),
		Password:   os.Getenv("CLICKHOUSE_TEST_PASSWORD"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClientStore_FirstMonths(t *testing.T) {
	client := postgresClient(t)
	ctx := context.Background()
	s := NewClientStore(client.DB)
	require.NoError(t, s.EnsureSchema(ctx))

	clientID := "test-" + uuid.NewString()
	staleID := "test-" + uuid.NewString()
	require.NoError(t, s.SaveFirstMonths(ctx, features.FirstMonths{clientID: 7, staleID: 3}))

	month, ok, err := s.FirstMonth(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, month)

	// A retrain replaces the whole lookup.
	require.NoError(t, s.SaveFirstMonths(ctx, features.FirstMonths{clientID: 5}))
	month, _, err = s.FirstMonth(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, 5, month)

	_, ok, err = s.FirstMonth(ctx, staleID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.FirstMonth(ctx, "missing-"+uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_LoadFromClickHouse(t *testing.T) {
	client := clickHouseClient(t)
	ctx := context.Background()

	require.NoError(t, client.Conn.Exec(ctx, `DROP TABLE IF EXISTS ga_sessions`))
	require.NoError(t, client.Conn.Exec(ctx, `DROP TABLE IF EXISTS ga_hits`))
	require.NoError(t, client.Conn.Exec(ctx, `
		CREATE TABLE ga_sessions (
			session_id String, client_id String, visit_date Date, visit_time String, visit_number UInt32,
			utm_source Nullable(String), utm_medium Nullable(String), utm_campaign Nullable(String),
			utm_adcontent Nullable(String), utm_keyword Nullable(String),
			device_category Nullable(String), device_os Nullable(String), device_brand Nullable(String),
			device_model Nullable(String), device_screen_resolution Nullable(String), device_browser Nullable(String),
			geo_country Nullable(String), geo_city Nullable(String)
		) ENGINE = Memory`))
	require.NoError(t, client.Conn.Exec(ctx, `
		CREATE TABLE ga_hits (session_id String, event_action String) ENGINE = Memory`))
	require.NoError(t, client.Conn.Exec(ctx, `
		INSERT INTO ga_sessions (session_id, client_id, visit_date, visit_time, visit_number, utm_medium, geo_city)
		VALUES ('s1', 'c1', '2021-11-24', '14:36:32', 1, 'organic', 'Moscow'),
		       ('s2', 'c1', '2021-12-01', '09:00:00', 2, NULL, NULL)`))
	require.NoError(t, client.Conn.Exec(ctx, `
		INSERT INTO ga_hits VALUES ('s1', 'view_card'), ('s1', 'sub_submit_success'), ('s2', 'view_card')`))

	s := NewSessionStore(client)
	sessions, err := s.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]models.SessionRecord{}
	for _, rec := range sessions {
		byID[rec.SessionID] = rec
	}
	assert.Equal(t, "2021-11-24", byID["s1"].VisitDate)
	require.NotNil(t, byID["s1"].UTMMedium)
	assert.Equal(t, "organic", *byID["s1"].UTMMedium)
	assert.Nil(t, byID["s2"].UTMMedium)
	assert.Equal(t, 2, byID["s2"].VisitNumber)

	labels, err := s.LoadLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, labels["s1"])
	assert.Equal(t, 0, labels["s2"])
}

func TestPredictionStore_Insert(t *testing.T) {
	client := clickHouseClient(t)
	ctx := context.Background()
	s := NewPredictionStore(client, zap.NewNop())
	s.waitAsync = true
	require.NoError(t, s.EnsureSchema(ctx))

	id := uuid.NewString()
	require.NoError(t, s.LogPrediction(ctx, models.PredictionEvent{
		EventID:      id,
		SessionID:    "s1",
		ClientID:     "c1",
		Pred:         1,
		Probability:  0.73,
		ModelVersion: 4,
		IPAddress:    "127.0.0.1",
		Timestamp:    time.Now().UTC(),
	}))

	var count uint64
	require.NoError(t, client.Conn.QueryRow(ctx, `SELECT count() FROM predictions WHERE event_id = ?`, id).Scan(&count))
	assert.Equal(t, uint64(1), count)

	assert.NoError(t, s.InsertPredictions(ctx, nil))

	batchIDs := []string{uuid.NewString(), uuid.NewString()}
	require.NoError(t, s.InsertPredictions(ctx, []models.PredictionEvent{
		{EventID: batchIDs[0], SessionID: "s2", ClientID: "c2", Timestamp: time.Now().UTC()},
		{EventID: batchIDs[1], SessionID: "s3", ClientID: "c2", Pred: 1, Timestamp: time.Now().UTC()},
	}))
	require.NoError(t, client.Conn.QueryRow(ctx, `SELECT count() FROM predictions WHERE has(?, event_id)`, batchIDs).Scan(&count))
	assert.Equal(t, uint64(2), count)
}
