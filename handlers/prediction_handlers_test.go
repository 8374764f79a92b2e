package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sberauto/predictor/artifact"
	"sberauto/predictor/gbm"
	"sberauto/predictor/models"
	"sberauto/predictor/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPredictor struct {
	pred pipeline.Prediction
	err  error
	got  []models.SessionRecord
}

func (s *stubPredictor) Predict(_ context.Context, rec models.SessionRecord) (pipeline.Prediction, error) {
	s.got = append(s.got, rec)
	return s.pred, s.err
}

type recordingLogger struct {
	mu     sync.Mutex
	events []models.PredictionEvent
	err    error
}

func (l *recordingLogger) LogPrediction(_ context.Context, e models.PredictionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return l.err
}

var testMetadata = artifact.NewMetadata(time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC))

func setupRouter(p Predictor, predLog PredictionLogger) *gin.Engine {
	h := NewPredictionHandlers(p, testMetadata, predLog, zap.NewNop())
	return NewRouter(h, "", zap.NewNop())
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const minimalRequest = `{
	"session_id": "9055434745589932991.1637753792.1637753792",
	"client_id": "2108382700.1637753791",
	"visit_date": "2023-05-01",
	"visit_time": "2023-05-01 10:15:00",
	"visit_number": 1,
	"utm_source": null, "utm_medium": null, "utm_campaign": null, "utm_adcontent": null, "utm_keyword": null,
	"device_category": null, "device_os": null, "device_brand": null, "device_model": null,
	"device_screen_resolution": null, "device_browser": null, "geo_country": null, "geo_city": null
}`

func TestStatus(t *testing.T) {
	r := setupRouter(&stubPredictor{err: errors.New("model broken")}, nil)

	w := do(r, http.MethodGet, "/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestVersion_StableAcrossCalls(t *testing.T) {
	r := setupRouter(&stubPredictor{}, nil)

	var first, second map[string]any
	w := do(r, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	w = do(r, http.MethodGet, "/version", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	assert.Equal(t, first, second)
	assert.Equal(t, float64(4), first["version"])
	assert.Equal(t, "Event action prediction for SberAuto subscription", first["name"])
	assert.Equal(t, "XGBClassifier", first["type"])
	assert.Equal(t, "2023-05-01T12:00:00Z", first["date"])
	assert.Contains(t, first, "author")
}

func TestPredict_Success(t *testing.T) {
	p := &stubPredictor{pred: pipeline.Prediction{Label: 1, Probability: 0.8}}
	predLog := &recordingLogger{}
	r := setupRouter(p, predLog)

	w := do(r, http.MethodPost, "/prediction", []byte(minimalRequest))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.PredictionResponse{
		SessionID: "9055434745589932991.1637753792.1637753792",
		ClientID:  "2108382700.1637753791",
		Pred:      1,
	}, resp)

	require.Len(t, p.got, 1)
	assert.Nil(t, p.got[0].UTMSource)
	assert.Equal(t, 1, p.got[0].VisitNumber)

	require.Len(t, predLog.events, 1)
	assert.Equal(t, uint8(1), predLog.events[0].Pred)
	assert.Equal(t, 0.8, predLog.events[0].Probability)
	assert.Equal(t, 4, predLog.events[0].ModelVersion)
	assert.NotEmpty(t, predLog.events[0].EventID)
}

func TestPredict_OmittedOptionalFieldsAreMissing(t *testing.T) {
	p := &stubPredictor{}
	r := setupRouter(p, nil)

	body := `{"session_id":"s","client_id":"c","visit_date":"2021-11-24","visit_time":"14:36:32","visit_number":0,"geo_city":"Moscow"}`
	w := do(r, http.MethodPost, "/prediction", []byte(body))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.got, 1)
	assert.Equal(t, 0, p.got[0].VisitNumber)
	assert.Nil(t, p.got[0].DeviceOS)
	require.NotNil(t, p.got[0].GeoCity)
	assert.Equal(t, "Moscow", *p.got[0].GeoCity)
}

func TestPredict_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing session_id", `{"client_id":"c","visit_date":"d","visit_time":"t","visit_number":1}`, "session_id"},
		{"null client_id", `{"session_id":"s","client_id":null,"visit_date":"d","visit_time":"t","visit_number":1}`, "client_id"},
		{"missing visit_date", `{"session_id":"s","client_id":"c","visit_time":"t","visit_number":1}`, "visit_date"},
		{"missing visit_number", `{"session_id":"s","client_id":"c","visit_date":"d","visit_time":"t"}`, "visit_number"},
		{"visit_number as string", `{"session_id":"s","client_id":"c","visit_date":"d","visit_time":"t","visit_number":"1"}`, "visit_number"},
		{"utm_source as number", `{"session_id":"s","client_id":"c","visit_date":"d","visit_time":"t","visit_number":1,"utm_source":5}`, "utm_source"},
		{"malformed json", `{"session_id":`, "body"},
		{"empty body", ``, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubPredictor{}
			r := setupRouter(p, nil)

			w := do(r, http.MethodPost, "/prediction", []byte(tt.body))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			var resp struct {
				Error  string       `json:"error"`
				Detail []FieldError `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Detail)
			assert.Equal(t, tt.field, resp.Detail[0].Field)
			assert.Empty(t, p.got)
		})
	}
}

func TestPredict_EmptyStringsAreValues(t *testing.T) {
	p := &stubPredictor{}
	r := setupRouter(p, nil)

	body := `{"session_id":"s","client_id":"","visit_date":"","visit_time":"","visit_number":1}`
	w := do(r, http.MethodPost, "/prediction", []byte(body))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, p.got, 1)
	assert.Equal(t, "", p.got[0].ClientID)
	assert.Equal(t, "", p.got[0].VisitDate)
	assert.Equal(t, "", p.got[0].VisitTime)

	var resp models.PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s", resp.SessionID)
	assert.Equal(t, "", resp.ClientID)
}

func TestPredict_InternalError(t *testing.T) {
	r := setupRouter(&stubPredictor{err: errors.New("classifier failed")}, nil)

	w := do(r, http.MethodPost, "/prediction", []byte(minimalRequest))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to compute prediction")
}

func TestPredict_LogFailureDoesNotFailRequest(t *testing.T) {
	predLog := &recordingLogger{err: errors.New("clickhouse down")}
	r := setupRouter(&stubPredictor{}, predLog)

	w := do(r, http.MethodPost, "/prediction", []byte(minimalRequest))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, predLog.events, 1)
}

func fittedPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	var records []models.SessionRecord
	var y []int
	mediums := []string{"organic", "cpc", "banner"}
	for i := 0; i < 60; i++ {
		m := mediums[i%3]
		records = append(records, models.SessionRecord{
			SessionID:   fmt.Sprintf("s%d", i),
			ClientID:    fmt.Sprintf("c%d", i%7),
			VisitDate:   fmt.Sprintf("2021-%02d-15", 1+i%12),
			VisitTime:   fmt.Sprintf("%02d:00:00", i%24),
			VisitNumber: 1 + i%4,
			UTMMedium:   &m,
		})
		if m == "organic" {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	cfg := gbm.DefaultConfig()
	cfg.NEstimators = 10
	p := pipeline.New(cfg)
	require.NoError(t, p.Fit(records, y, nil))
	return p
}

func TestPredict_EndToEndIdempotent(t *testing.T) {
	r := setupRouter(fittedPipeline(t), nil)

	w1 := do(r, http.MethodPost, "/prediction", []byte(minimalRequest))
	w2 := do(r, http.MethodPost, "/prediction", []byte(minimalRequest))
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)

	var a, b models.PredictionResponse
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &b))
	assert.Contains(t, []int{0, 1}, a.Pred)
	assert.Equal(t, a, b)
	assert.Equal(t, "9055434745589932991.1637753792.1637753792", a.SessionID)
	assert.Equal(t, "2108382700.1637753791", a.ClientID)
}

func TestPredict_EndToEndUnseenCategory(t *testing.T) {
	r := setupRouter(fittedPipeline(t), nil)

	body := `{"session_id":"s","client_id":"c","visit_date":"2021-11-24","visit_time":"14:36:32","visit_number":3,"utm_medium":"carrier_pigeon","device_browser":"Netscape"}`
	w := do(r, http.MethodPost, "/prediction", []byte(body))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPredict_EndToEndEmptyDateIsImputed(t *testing.T) {
	r := setupRouter(fittedPipeline(t), nil)

	body := `{"session_id":"s","client_id":"c1","visit_date":"","visit_time":"","visit_number":2,"utm_medium":"organic"}`
	w := do(r, http.MethodPost, "/prediction", []byte(body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, []int{0, 1}, resp.Pred)
}
