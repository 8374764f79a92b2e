package store

import (
	"context"
	"fmt"

	"sberauto/predictor/database"
	"sberauto/predictor/dataset"
	"sberauto/predictor/models"
)

// SessionStore reads the raw GA exports from ClickHouse. It is the
// alternative to the CSV files when the training data lives in the
// warehouse.
type SessionStore struct {
	DB *database.ClickHouseClient
}

func NewSessionStore(chClient *database.ClickHouseClient) *SessionStore {
	return &SessionStore{
		DB: chClient,
	}
}

const sessionsQuery = `
	SELECT
		toString(session_id), toString(client_id),
		toString(visit_date), toString(visit_time), toInt64(visit_number),
		toNullable(utm_source), toNullable(utm_medium), toNullable(utm_campaign),
		toNullable(utm_adcontent), toNullable(utm_keyword),
		toNullable(device_category), toNullable(device_os), toNullable(device_brand),
		toNullable(device_model), toNullable(device_screen_resolution), toNullable(device_browser),
		toNullable(geo_country), toNullable(geo_city)
	FROM ga_sessions
`

// LoadSessions reads every row of ga_sessions.
func (s *SessionStore) LoadSessions(ctx context.Context) ([]models.SessionRecord, error) {
	rows, err := s.DB.Conn.Query(ctx, sessionsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.SessionRecord
	for rows.Next() {
		var (
			rec         models.SessionRecord
			visitNumber int64
		)
		if err := rows.Scan(
			&rec.SessionID, &rec.ClientID,
			&rec.VisitDate, &rec.VisitTime, &visitNumber,
			&rec.UTMSource, &rec.UTMMedium, &rec.UTMCampaign,
			&rec.UTMAdContent, &rec.UTMKeyword,
			&rec.DeviceCategory, &rec.DeviceOS, &rec.DeviceBrand,
			&rec.DeviceModel, &rec.DeviceScreenResolution, &rec.DeviceBrowser,
			&rec.GeoCountry, &rec.GeoCity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.VisitNumber = int(visitNumber)
		sessions = append(sessions, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during sessions query: %w", err)
	}
	return sessions, nil
}

// LoadLabels aggregates ga_hits per session inside ClickHouse, applying the
// same rule as dataset.CreateLabels.
func (s *SessionStore) LoadLabels(ctx context.Context) (dataset.Labels, error) {
	query := `
		SELECT toString(session_id), max(has(?, event_action)) AS target
		FROM ga_hits
		GROUP BY session_id
	`
	rows, err := s.DB.Conn.Query(ctx, query, dataset.TargetEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to query hit labels: %w", err)
	}
	defer rows.Close()

	labels := make(dataset.Labels)
	for rows.Next() {
		var (
			sessionID string
			target    uint8
		)
		if err := rows.Scan(&sessionID, &target); err != nil {
			return nil, fmt.Errorf("failed to scan label row: %w", err)
		}
		labels[sessionID] = int(target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during labels query: %w", err)
	}
	return labels, nil
}
