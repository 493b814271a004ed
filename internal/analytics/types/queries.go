package types

import "time"

// OrdersReportRequest bounds an admin order report.
type OrdersReportRequest struct {
	Start time.Time
	End   time.Time
}

// TimeSeriesPoint is a single day/value pair.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue is a top-N entry such as a product id.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// OrdersReport summarizes order activity over a window.
type OrdersReport struct {
	Orders           []TimeSeriesPoint `json:"orders"`
	GrossRevenue     []TimeSeriesPoint `json:"grossRevenueCents"`
	Refunds          []TimeSeriesPoint `json:"refundsCents"`
	TopProducts      []LabelValue      `json:"topProducts"`
	AverageOrderCent float64           `json:"averageOrderCents"`
}
