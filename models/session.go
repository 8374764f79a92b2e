// predictor/models/session.go
package models

// SessionRecord is one row of the ga_sessions export: a single user visit.
// Optional attribution, device and geo fields are nil when absent.
type SessionRecord struct {
	SessionID   string `json:"session_id"`
	ClientID    string `json:"client_id"`
	VisitDate   string `json:"visit_date"`
	VisitTime   string `json:"visit_time"`
	VisitNumber int    `json:"visit_number"`

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

// Hit is one in-session event from the ga_hits export. Only the columns
// needed for labeling are kept.
type Hit struct {
	SessionID   string `json:"session_id"`
	EventAction string `json:"event_action"`
}
