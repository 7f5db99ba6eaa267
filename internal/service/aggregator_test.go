package service_test

import (
	"testing"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func period(t *testing.T, s string) *domain.Period {
	t.Helper()
	p, err := domain.ParsePeriod(s)
	require.NoError(t, err)
	return &p
}

var ledger = []domain.Transaction{
	{ID: "t1", Description: "Salário", Amount: 5000, Date: "2024-03-05", CategoryID: "1", Type: domain.Income},
	{ID: "t2", Description: "Mercado", Amount: 320.5, Date: "2024-03-04", CategoryID: "4", Type: domain.Expense},
	{ID: "t3", Description: "Aluguel", Amount: 1500, Date: "2024-03-01", CategoryID: "5", Type: domain.Expense},
	{ID: "t4", Description: "Freela", Amount: 800, Date: "2024-01-20", CategoryID: "2", Type: domain.Income},
	{ID: "t5", Description: "Cinema", Amount: 60, Date: "2023-12-30", CategoryID: "7", Type: domain.Expense},
	{ID: "t6", Description: "Uber", Amount: 42, Date: "2024-03-02", CategoryID: "gone", Type: domain.Expense},
}

func TestFilterByPeriod(t *testing.T) {
	got := service.FilterByPeriod(ledger, period(t, "2024-03"))

	ids := make([]string, 0, len(got))
	for _, tx := range got {
		assert.Equal(t, "2024-03", tx.Date[:7])
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"t1", "t2", "t3", "t6"}, ids)

	assert.Equal(t, ledger, service.FilterByPeriod(ledger, nil), "nil period keeps everything")
	assert.Empty(t, service.FilterByPeriod(ledger, period(t, "2022-07")))
}

func TestFilterByType(t *testing.T) {
	got := service.FilterByType(ledger, domain.Income)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t4", got[1].ID)

	assert.Len(t, service.FilterByType(ledger, ""), len(ledger))
}

func TestCategoriesOfType(t *testing.T) {
	cats := service.CategoriesOfType(domain.DefaultCategories(), domain.Income)
	require.Len(t, cats, 3)
	for _, c := range cats {
		assert.Equal(t, domain.Income, c.Type)
	}
}

func TestComputeTotals(t *testing.T) {
	got := service.ComputeTotals(service.FilterByPeriod(ledger, period(t, "2024-03")))

	assert.InDelta(t, 5000.0, got.Income, 1e-9)
	assert.InDelta(t, 1862.5, got.Expense, 1e-9)
	assert.InDelta(t, got.Income-got.Expense, got.Balance, 1e-9)

	assert.Equal(t, domain.Totals{}, service.ComputeTotals(nil))
}

func TestCategoryBreakdown(t *testing.T) {
	txs := service.FilterByPeriod(ledger, period(t, "2024-03"))
	got := service.CategoryBreakdown(txs, domain.DefaultCategories())

	require.Len(t, got, 2, "only expense categories with spending")
	assert.Equal(t, "Alimentação", got[0].Name)
	assert.InDelta(t, 320.5, got[0].Value, 1e-9)
	assert.Equal(t, domain.ColorAmber, got[0].Color)
	assert.Equal(t, "#f59e0b", got[0].Hex)
	assert.Equal(t, "Moradia", got[1].Name)
	assert.InDelta(t, 1500.0, got[1].Value, 1e-9)

	assert.Empty(t, service.CategoryBreakdown(nil, domain.DefaultCategories()))
}

func TestHistoryRollup_Ordering(t *testing.T) {
	txs := []domain.Transaction{
		{Amount: 10, Date: "2024-01-15", Type: domain.Income},
		{Amount: 20, Date: "2024-03-02", Type: domain.Expense},
		{Amount: 5, Date: "2023-12-31", Type: domain.Income},
		{Amount: 7, Date: "2024-03-20", Type: domain.Income},
	}

	got := service.HistoryRollup(txs)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Period("2024-03"), got[0].Period)
	assert.Equal(t, domain.Period("2024-01"), got[1].Period)
	assert.Equal(t, domain.Period("2023-12"), got[2].Period)

	assert.InDelta(t, 7.0, got[0].Income, 1e-9)
	assert.InDelta(t, 20.0, got[0].Expense, 1e-9)
	assert.InDelta(t, -13.0, got[0].Balance, 1e-9)

	assert.Empty(t, service.HistoryRollup(nil))
}

func TestDailySeries(t *testing.T) {
	now := time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)
	got := service.DailySeries(ledger, now, 7)

	require.Len(t, got, 7)
	assert.Equal(t, "2024-02-28", got[0].Date)
	assert.Equal(t, "2024-03-05", got[6].Date)
	assert.Equal(t, "05", got[6].Label)
	assert.InDelta(t, 5000.0, got[6].Income, 1e-9)
	assert.InDelta(t, 320.5, got[5].Expense, 1e-9)
	assert.InDelta(t, 1500.0, got[2].Expense, 1e-9)
	assert.Zero(t, got[0].Income+got[0].Expense)
}

func TestRecentTransactions_ResolvesCategories(t *testing.T) {
	got := service.RecentTransactions(service.FilterByPeriod(ledger, period(t, "2024-03")), domain.DefaultCategories(), 5)

	require.Len(t, got, 4)
	require.NotNil(t, got[0].Category)
	assert.Equal(t, "Salário", got[0].Category.Name)
	assert.Nil(t, got[3].Category, "dangling category id")
}

func TestSummarizeEnergy(t *testing.T) {
	bills := []domain.EnergyBill{
		{ID: "b1", Period: "Mar/2024", KWh: 450, ProviderATotal: 300, ProviderBTotal: 210},
		{ID: "b2", Period: "Fev/2024", KWh: 350, ProviderATotal: 250, ProviderBTotal: 190},
	}

	got := service.SummarizeEnergy(bills)
	assert.InDelta(t, 150.0, got.TotalSavings, 1e-9)
	assert.InDelta(t, 400.0, got.AverageKWh, 1e-9)
	assert.Equal(t, 2, got.MonthsTracked)
	assert.InDelta(t, 376.0, got.CO2AvoidedKg, 1e-9)
	assert.InDelta(t, 32.0, got.TreeEquivalent, 1e-9)

	assert.Equal(t, domain.EnergySummary{}, service.SummarizeEnergy(nil))
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	d := service.BuildDashboard(ledger, domain.DefaultCategories(), nil, period(t, "2024-03"), now)
	assert.False(t, d.Empty)
	assert.InDelta(t, 5000.0, d.Totals.Income, 1e-9)
	assert.Len(t, d.Recent, 4)
	assert.Len(t, d.Daily, 7)

	empty := service.BuildDashboard(ledger, domain.DefaultCategories(), nil, period(t, "2020-01"), now)
	assert.True(t, empty.Empty)
	assert.Empty(t, empty.Breakdown)
}
