package service

import (
	"sort"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
)

// ============================================================
// Period aggregator: pure functions over snapshots
// ============================================================

const (
	co2KgPerKWh   = 0.47
	treesPerKWh   = 0.04
	dashboardDays = 7
	recentCount   = 5
)

// FilterByPeriod keeps the transactions dated inside p. A nil period
// returns txs unchanged.
func FilterByPeriod(txs []domain.Transaction, p *domain.Period) []domain.Transaction {
	if p == nil {
		return txs
	}
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if p.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByType keeps one side of the ledger. An empty type keeps all.
func FilterByType(txs []domain.Transaction, typ domain.TransactionType) []domain.Transaction {
	if typ == "" {
		return txs
	}
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// CategoriesOfType keeps the categories offered for one transaction type.
func CategoriesOfType(cats []domain.Category, typ domain.TransactionType) []domain.Category {
	if typ == "" {
		return cats
	}
	out := make([]domain.Category, 0, len(cats))
	for _, c := range cats {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// ComputeTotals sums each side of the ledger.
func ComputeTotals(txs []domain.Transaction) domain.Totals {
	var t domain.Totals
	for _, tx := range txs {
		switch tx.Type {
		case domain.Income:
			t.Income += tx.Amount
		case domain.Expense:
			t.Expense += tx.Amount
		}
	}
	t.Balance = t.Income - t.Expense
	return t
}

// CategoryBreakdown sums the transactions of every expense category, in
// category order, and leaves out categories with nothing spent.
func CategoryBreakdown(txs []domain.Transaction, cats []domain.Category) []domain.CategorySlice {
	sums := make(map[string]float64, len(cats))
	for _, t := range txs {
		sums[t.CategoryID] += t.Amount
	}

	out := make([]domain.CategorySlice, 0)
	for _, c := range cats {
		if c.Type != domain.Expense {
			continue
		}
		v := sums[c.ID]
		if v <= 0 {
			continue
		}
		out = append(out, domain.CategorySlice{
			CategoryID: c.ID,
			Name:       c.Name,
			Value:      v,
			Color:      c.Color,
			Hex:        c.Color.Style().Hex,
		})
	}
	return out
}

// HistoryRollup groups every transaction by month, newest month first.
func HistoryRollup(txs []domain.Transaction) []domain.PeriodSummary {
	byPeriod := make(map[domain.Period]*domain.PeriodSummary)
	for _, t := range txs {
		p := t.Period()
		s, ok := byPeriod[p]
		if !ok {
			s = &domain.PeriodSummary{Period: p}
			byPeriod[p] = s
		}
		switch t.Type {
		case domain.Income:
			s.Income += t.Amount
		case domain.Expense:
			s.Expense += t.Amount
		}
	}

	out := make([]domain.PeriodSummary, 0, len(byPeriod))
	for _, s := range byPeriod {
		s.Balance = s.Income - s.Expense
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out
}

// DailySeries returns income and expense for each of the last days days
// ending at now, oldest first.
func DailySeries(txs []domain.Transaction, now time.Time, days int) []domain.DailyPoint {
	if days <= 0 {
		return []domain.DailyPoint{}
	}

	points := make([]domain.DailyPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, i-days+1).Format(domain.DateLayout)
		points[i] = domain.DailyPoint{Date: d, Label: d[8:]}
		index[d] = i
	}

	for _, t := range txs {
		i, ok := index[t.Date]
		if !ok {
			continue
		}
		switch t.Type {
		case domain.Income:
			points[i].Income += t.Amount
		case domain.Expense:
			points[i].Expense += t.Amount
		}
	}
	return points
}

// RecentTransactions returns the first n transactions with their category
// resolved. Input is newest-first.
func RecentTransactions(txs []domain.Transaction, cats []domain.Category, n int) []domain.RecentTransaction {
	if n > len(txs) {
		n = len(txs)
	}
	byID := make(map[string]domain.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	out := make([]domain.RecentTransaction, 0, n)
	for _, t := range txs[:n] {
		rt := domain.RecentTransaction{Transaction: t}
		if c, ok := byID[t.CategoryID]; ok {
			rt.Category = &c
		}
		out = append(out, rt)
	}
	return out
}

// SummarizeEnergy accumulates savings and consumption over all bills.
func SummarizeEnergy(bills []domain.EnergyBill) domain.EnergySummary {
	var s domain.EnergySummary
	var kwh float64
	for _, b := range bills {
		s.TotalSavings += b.Savings()
		kwh += b.KWh
	}
	s.MonthsTracked = len(bills)
	if len(bills) > 0 {
		s.AverageKWh = kwh / float64(len(bills))
	}
	s.CO2AvoidedKg = kwh * co2KgPerKWh
	s.TreeEquivalent = kwh * treesPerKWh
	return s
}

// BuildDashboard assembles the dashboard of one period.
func BuildDashboard(txs []domain.Transaction, cats []domain.Category, bills []domain.EnergyBill, p *domain.Period, now time.Time) domain.Dashboard {
	visible := FilterByPeriod(txs, p)
	return domain.Dashboard{
		Period:    p,
		Empty:     len(visible) == 0 && len(bills) == 0,
		Totals:    ComputeTotals(visible),
		Breakdown: CategoryBreakdown(visible, cats),
		Daily:     DailySeries(visible, now, dashboardDays),
		Recent:    RecentTransactions(visible, cats, recentCount),
		Energy:    SummarizeEnergy(bills),
	}
}
