// predictor/handlers/prediction_handlers.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sberauto/predictor/artifact"
	"sberauto/predictor/models"
	"sberauto/predictor/pipeline"
)

// Predictor scores one session record.
type Predictor interface {
	Predict(ctx context.Context, rec models.SessionRecord) (pipeline.Prediction, error)
}

// PredictionLogger records served predictions. Failures never fail the
// request.
type PredictionLogger interface {
	LogPrediction(ctx context.Context, e models.PredictionEvent) error
}

// PredictionHandlers serve the loaded model. All fields are set once at
// startup and only read afterwards.
type PredictionHandlers struct {
	Model    Predictor
	Metadata artifact.Metadata
	PredLog  PredictionLogger
	log      *zap.Logger
}

func NewPredictionHandlers(model Predictor, meta artifact.Metadata, predLog PredictionLogger, log *zap.Logger) *PredictionHandlers {
	return &PredictionHandlers{
		Model:    model,
		Metadata: meta,
		PredLog:  predLog,
		log:      log,
	}
}

func (h *PredictionHandlers) Status(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *PredictionHandlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.Metadata)
}

func (h *PredictionHandlers) Predict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Invalid request body",
			"detail": validationDetail(err),
		})
		return
	}

	rec := req.Session()
	pred, err := h.Model.Predict(c.Request.Context(), rec)
	if err != nil {
		h.log.Error("prediction failed",
			zap.String("session_id", rec.SessionID),
			zap.String("client_id", rec.ClientID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute prediction"})
		return
	}

	if h.PredLog != nil {
		h.logPrediction(c, rec, pred)
	}

	c.JSON(http.StatusOK, models.PredictionResponse{
		SessionID: rec.SessionID,
		ClientID:  rec.ClientID,
		Pred:      pred.Label,
	})
}

// predictionLogTimeout bounds how long a request waits for the audit log to
// accept an event.
const predictionLogTimeout = time.Second

func (h *PredictionHandlers) logPrediction(c *gin.Context, rec models.SessionRecord, pred pipeline.Prediction) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), predictionLogTimeout)
	defer cancel()

	event := models.PredictionEvent{
		EventID:      uuid.New().String(),
		SessionID:    rec.SessionID,
		ClientID:     rec.ClientID,
		Pred:         uint8(pred.Label),
		Probability:  pred.Probability,
		ModelVersion: h.Metadata.Version,
		IPAddress:    c.ClientIP(),
		Timestamp:    time.Now().UTC(),
	}
	if err := h.PredLog.LogPrediction(ctx, event); err != nil {
		h.log.Warn("failed to record prediction", zap.String("session_id", rec.SessionID), zap.Error(err))
	}
}
