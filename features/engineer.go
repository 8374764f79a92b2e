package features

import (
	"context"
	"fmt"
	"math"

	"sberauto/predictor/models"
	"sberauto/predictor/utils"
)

var organicMediums = map[string]struct{}{
	"organic":  {},
	"referral": {},
	"(none)":   {},
}

var socialSources = map[string]struct{}{
	"QxAxdyPLuQMEcrdZWdWb": {},
	"MvfHsxITijuriZxsqZqt": {},
	"ISrKoXQCxqqYvAZICvjs": {},
	"IZEXUFLARCUMynmHNBGo": {},
	"PlbkrSYoHuZBWfYjYnfw": {},
	"gVRrcxiDQubJiljoTbGm": {},
}

var (
	yes = "Y"
	no  = "N"
)

// History resolves the first month a client was seen. Training produces it
// from the full table; serving reads it back from the artifact or a store.
type History interface {
	FirstMonth(ctx context.Context, clientID string) (month int, ok bool, err error)
}

// FirstMonths is the in-memory History built during training.
type FirstMonths map[string]int

func (f FirstMonths) FirstMonth(_ context.Context, clientID string) (int, bool, error) {
	m, ok := f[clientID]
	return m, ok, nil
}

// visit holds the parsed calendar fields of one record. Fields are NaN when
// the source could not be parsed.
type visit struct {
	weekday, month, day, hour float64
}

func parseVisit(rec models.SessionRecord) visit {
	v := visit{weekday: math.NaN(), month: math.NaN(), day: math.NaN(), hour: math.NaN()}
	if d, ok := utils.ParseTimestamp(rec.VisitDate); ok {
		// Monday is 0.
		v.weekday = float64((int(d.Weekday()) + 6) % 7)
		v.month = float64(d.Month())
		v.day = float64(d.Day())
	}
	if t, ok := utils.ParseTimestamp(rec.VisitTime); ok {
		v.hour = float64(t.Hour())
	}
	return v
}

// Organic flags organic, referral and direct traffic. Missing stays missing.
func Organic(medium *string) *string {
	return flag(medium, organicMediums)
}

// Social flags the known social network sources. Missing stays missing.
func Social(source *string) *string {
	return flag(source, socialSources)
}

func flag(v *string, set map[string]struct{}) *string {
	if v == nil {
		return nil
	}
	if _, ok := set[*v]; ok {
		return &yes
	}
	return &no
}

// NewVisitor is 1 only for a client's first visit.
func NewVisitor(visitNumber int) int {
	if visitNumber == 1 {
		return 1
	}
	return 0
}

func build(rec models.SessionRecord, v visit, firstMonth float64) Row {
	row := newRow()

	row.Categorical[ColUTMSource] = rec.UTMSource
	row.Categorical[ColUTMMedium] = rec.UTMMedium
	row.Categorical[ColUTMCampaign] = rec.UTMCampaign
	row.Categorical[ColUTMAdContent] = rec.UTMAdContent
	row.Categorical[ColUTMKeyword] = rec.UTMKeyword
	row.Categorical[ColDeviceCategory] = rec.DeviceCategory
	row.Categorical[ColDeviceOS] = rec.DeviceOS
	row.Categorical[ColDeviceBrand] = rec.DeviceBrand
	row.Categorical[ColDeviceBrowser] = rec.DeviceBrowser
	row.Categorical[ColGeoCountry] = rec.GeoCountry
	row.Categorical[ColGeoCity] = rec.GeoCity
	row.Categorical[ColOrganic] = Organic(rec.UTMMedium)
	row.Categorical[ColSocial] = Social(rec.UTMSource)

	row.Numeric[ColVisitNumber] = float64(rec.VisitNumber)
	row.Numeric[ColVisitWeekday] = v.weekday
	row.Numeric[ColVisitMonth] = v.month
	row.Numeric[ColVisitDay] = v.day
	row.Numeric[ColVisitHour] = v.hour
	row.Numeric[ColNewVisitor] = float64(NewVisitor(rec.VisitNumber))
	row.Numeric[ColFirstMonth] = firstMonth
	row.Numeric[ColMonthDuration] = v.month - firstMonth

	return row
}

// Transform engineers a whole training table. first_month is the minimum
// visit month of each client across the table; the returned FirstMonths
// carries that lookup so serving can reproduce it.
func Transform(records []models.SessionRecord) ([]Row, FirstMonths) {
	visits := make([]visit, len(records))
	firstMonths := make(FirstMonths)
	for i, rec := range records {
		v := parseVisit(rec)
		visits[i] = v
		if math.IsNaN(v.month) {
			continue
		}
		m := int(v.month)
		if cur, ok := firstMonths[rec.ClientID]; !ok || m < cur {
			firstMonths[rec.ClientID] = m
		}
	}

	rows := make([]Row, len(records))
	for i, rec := range records {
		first := math.NaN()
		if m, ok := firstMonths[rec.ClientID]; ok {
			first = float64(m)
		}
		rows[i] = build(rec, visits[i], first)
	}
	return rows, firstMonths
}

// TransformOne engineers a single record at serving time. The client's first
// month is the earlier of what history knows and the current visit, which is
// what Transform yields for any record that was part of training.
func TransformOne(ctx context.Context, rec models.SessionRecord, history History) (Row, error) {
	v := parseVisit(rec)
	first := v.month

	if history != nil {
		m, ok, err := history.FirstMonth(ctx, rec.ClientID)
		if err != nil {
			return Row{}, fmt.Errorf("failed to resolve first month for client %s: %w", rec.ClientID, err)
		}
		if ok && (math.IsNaN(first) || float64(m) < first) {
			first = float64(m)
		}
	}
	return build(rec, v, first), nil
}
