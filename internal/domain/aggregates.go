package domain

// ============================================================
// Read-side views computed by the aggregator
// ============================================================

// Totals of a set of transactions. Balance = Income - Expense.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// CategorySlice is one slice of the expense breakdown chart.
type CategorySlice struct {
	CategoryID string        `json:"categoryId"`
	Name       string        `json:"name"`
	Value      float64       `json:"value"`
	Color      CategoryColor `json:"color"`
	Hex        string        `json:"hex"`
}

// PeriodSummary is one row of the history rollup.
type PeriodSummary struct {
	Period  Period  `json:"period"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// DailyPoint is one day of the dashboard area chart.
type DailyPoint struct {
	Date    string  `json:"date"`
	Label   string  `json:"label"` // day of month, DD
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// RecentTransaction pairs a transaction with its category, nil when the
// category no longer exists.
type RecentTransaction struct {
	Transaction
	Category *Category `json:"category"`
}

// EnergySummary accumulates the energy-bill comparisons.
type EnergySummary struct {
	TotalSavings   float64 `json:"totalSavings"`
	AverageKWh     float64 `json:"averageKwh"`
	MonthsTracked  int     `json:"monthsTracked"`
	CO2AvoidedKg   float64 `json:"co2AvoidedKg"`
	TreeEquivalent float64 `json:"treeEquivalent"`
}

// Dashboard is the payload of GET /v1/dashboard.
type Dashboard struct {
	Period    *Period             `json:"period"`
	Empty     bool                `json:"empty"`
	Totals    Totals              `json:"totals"`
	Breakdown []CategorySlice     `json:"breakdown"`
	Daily     []DailyPoint        `json:"daily"`
	Recent    []RecentTransaction `json:"recent"`
	Energy    EnergySummary       `json:"energy"`
}
