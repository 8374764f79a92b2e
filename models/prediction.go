package models

import "time"

// PredictionRequest is the body of POST /prediction. Identifiers and visit
// timing must be present and non-null, but an empty string is a value; the
// pointers keep "required" from rejecting it. Everything else may be null or
// omitted.
type PredictionRequest struct {
	SessionID   *string `json:"session_id" binding:"required"`
	ClientID    *string `json:"client_id" binding:"required"`
	VisitDate   *string `json:"visit_date" binding:"required"`
	VisitTime   *string `json:"visit_time" binding:"required"`
	VisitNumber *int    `json:"visit_number" binding:"required"`

	UTMSource    *string `json:"utm_source"`
	UTMMedium    *string `json:"utm_medium"`
	UTMCampaign  *string `json:"utm_campaign"`
	UTMAdContent *string `json:"utm_adcontent"`
	UTMKeyword   *string `json:"utm_keyword"`

	DeviceCategory         *string `json:"device_category"`
	DeviceOS               *string `json:"device_os"`
	DeviceBrand            *string `json:"device_brand"`
	DeviceModel            *string `json:"device_model"`
	DeviceScreenResolution *string `json:"device_screen_resolution"`
	DeviceBrowser          *string `json:"device_browser"`

	GeoCountry *string `json:"geo_country"`
	GeoCity    *string `json:"geo_city"`
}

// Session converts a validated request into the record shape used by the
// feature pipeline.
func (r PredictionRequest) Session() SessionRecord {
	rec := SessionRecord{
		SessionID:              deref(r.SessionID),
		ClientID:               deref(r.ClientID),
		VisitDate:              deref(r.VisitDate),
		VisitTime:              deref(r.VisitTime),
		UTMSource:              r.UTMSource,
		UTMMedium:              r.UTMMedium,
		UTMCampaign:            r.UTMCampaign,
		UTMAdContent:           r.UTMAdContent,
		UTMKeyword:             r.UTMKeyword,
		DeviceCategory:         r.DeviceCategory,
		DeviceOS:               r.DeviceOS,
		DeviceBrand:            r.DeviceBrand,
		DeviceModel:            r.DeviceModel,
		DeviceScreenResolution: r.DeviceScreenResolution,
		DeviceBrowser:          r.DeviceBrowser,
		GeoCountry:             r.GeoCountry,
		GeoCity:                r.GeoCity,
	}
	if r.VisitNumber != nil {
		rec.VisitNumber = *r.VisitNumber
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type PredictionResponse struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	Pred      int    `json:"pred"`
}

// PredictionEvent is one row of the prediction audit log.
type PredictionEvent struct {
	EventID      string    `json:"eventId"`
	SessionID    string    `json:"sessionId"`
	ClientID     string    `json:"clientId"`
	Pred         uint8     `json:"pred"`
	Probability  float64   `json:"probability"`
	ModelVersion int       `json:"modelVersion"`
	IPAddress    string    `json:"ipAddress"`
	Timestamp    time.Time `json:"timestamp"`
}
