// Package features turns raw session records into model-ready rows with a
// fixed column layout.
package features

// CategoricalColumns lists the string-valued features, in encoding order.
var CategoricalColumns = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_adcontent",
	"utm_keyword",
	"device_category",
	"device_os",
	"device_brand",
	"device_browser",
	"geo_country",
	"geo_city",
	"organic",
	"social",
}

// NumericColumns lists the numeric features, in encoding order.
var NumericColumns = []string{
	"visit_number",
	"visit_weekday",
	"visit_month",
	"visit_day",
	"visit_hour",
	"new_visitor",
	"first_month",
	"month_duration",
}

// Indexes into Row.Categorical.
const (
	ColUTMSource = iota
	ColUTMMedium
	ColUTMCampaign
	ColUTMAdContent
	ColUTMKeyword
	ColDeviceCategory
	ColDeviceOS
	ColDeviceBrand
	ColDeviceBrowser
	ColGeoCountry
	ColGeoCity
	ColOrganic
	ColSocial
)

// Indexes into Row.Numeric.
const (
	ColVisitNumber = iota
	ColVisitWeekday
	ColVisitMonth
	ColVisitDay
	ColVisitHour
	ColNewVisitor
	ColFirstMonth
	ColMonthDuration
)

// Row is one engineered record. A nil categorical value or a NaN numeric
// value is missing and left for the imputers.
type Row struct {
	Categorical []*string
	Numeric     []float64
}

func newRow() Row {
	return Row{
		Categorical: make([]*string, len(CategoricalColumns)),
		Numeric:     make([]float64, len(NumericColumns)),
	}
}
