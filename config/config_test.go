package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "model/sber_auto_pipe.zst", cfg.ModelPath)
	assert.False(t, cfg.PredictionLog)
}

func TestLoadServer_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_PATH", "/srv/model.zst")
	t.Setenv("PREDICTION_LOG", "true")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/srv/model.zst", cfg.ModelPath)
	assert.True(t, cfg.PredictionLog)
}

func TestLoadTrain_Defaults(t *testing.T) {
	cfg, err := LoadTrain()
	require.NoError(t, err)
	assert.Equal(t, "data/ga_sessions.csv", cfg.SessionsPath)
	assert.Equal(t, "data/ga_hits.csv", cfg.HitsPath)
	assert.Equal(t, "xgb_model.json", cfg.ClassifierConfigPath)
	assert.Equal(t, "sber_auto_pipe.zst", cfg.ArtifactPath)
	assert.Equal(t, "csv", cfg.Source)
}

func TestLoadTrain_InvalidSource(t *testing.T) {
	t.Setenv("TRAIN_SOURCE", "parquet")
	_, err := LoadTrain()
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}
