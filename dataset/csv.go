package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sberauto/predictor/models"
)

// ErrMissingColumn is returned when a required column is not in the header.
var ErrMissingColumn = errors.New("missing required column")

// naValues are the cell contents read as missing, matching what the
// upstream exports use for nulls.
var naValues = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NULL": {}, "null": {},
	"NaN": {}, "nan": {}, "None": {}, "<NA>": {}, "#N/A": {},
}

func isNA(s string) bool {
	_, ok := naValues[s]
	return ok
}

type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	h := make(header, len(row))
	for i, name := range row {
		h[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return h, nil
}

func (h header) value(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (h header) optional(row []string, name string) *string {
	v := h.value(row, name)
	if isNA(v) {
		return nil
	}
	return &v
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	return cr
}

// ReadSessions parses a ga_sessions export.
func ReadSessions(r io.Reader) ([]models.SessionRecord, error) {
	cr := newReader(r)
	h, err := readHeader(cr, "session_id", "client_id", "visit_date", "visit_time", "visit_number")
	if err != nil {
		return nil, err
	}

	var sessions []models.SessionRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sessions line %d: %w", line, err)
		}

		visitNumber, err := strconv.Atoi(strings.TrimSpace(h.value(row, "visit_number")))
		if err != nil {
			// Exports sometimes write integers as floats.
			f, ferr := strconv.ParseFloat(strings.TrimSpace(h.value(row, "visit_number")), 64)
			if ferr != nil {
				return nil, fmt.Errorf("invalid visit_number on line %d: %w", line, err)
			}
			visitNumber = int(f)
		}

		sessions = append(sessions, models.SessionRecord{
			SessionID:              h.value(row, "session_id"),
			ClientID:               h.value(row, "client_id"),
			VisitDate:              h.value(row, "visit_date"),
			VisitTime:              h.value(row, "visit_time"),
			VisitNumber:            visitNumber,
			UTMSource:              h.optional(row, "utm_source"),
			UTMMedium:              h.optional(row, "utm_medium"),
			UTMCampaign:            h.optional(row, "utm_campaign"),
			UTMAdContent:           h.optional(row, "utm_adcontent"),
			UTMKeyword:             h.optional(row, "utm_keyword"),
			DeviceCategory:         h.optional(row, "device_category"),
			DeviceOS:               h.optional(row, "device_os"),
			DeviceBrand:            h.optional(row, "device_brand"),
			DeviceModel:            h.optional(row, "device_model"),
			DeviceScreenResolution: h.optional(row, "device_screen_resolution"),
			DeviceBrowser:          h.optional(row, "device_browser"),
			GeoCountry:             h.optional(row, "geo_country"),
			GeoCity:                h.optional(row, "geo_city"),
		})
	}
	return sessions, nil
}

// StreamHits parses a ga_hits export and calls fn for every row. The hits
// export is much larger than sessions, so rows are never collected.
func StreamHits(r io.Reader, fn func(models.Hit)) error {
	cr := newReader(r)
	h, err := readHeader(cr, "session_id", "event_action")
	if err != nil {
		return err
	}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read hits line %d: %w", line, err)
		}
		fn(models.Hit{
			SessionID:   h.value(row, "session_id"),
			EventAction: h.value(row, "event_action"),
		})
	}
}

func ReadSessionsFile(path string) ([]models.SessionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sessions file: %w", err)
	}
	defer f.Close()
	return ReadSessions(f)
}

// ReadLabelsFile streams a hits file straight into Labels.
func ReadLabelsFile(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hits file: %w", err)
	}
	defer f.Close()

	labels := make(Labels)
	if err := StreamHits(f, labels.Add); err != nil {
		return nil, err
	}
	return labels, nil
}
