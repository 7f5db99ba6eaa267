package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

func TestParseCategoryColor(t *testing.T) {
	tests := map[string]CategoryColor{
		"rose":             ColorRose,
		"text-emerald-500": ColorEmerald,
		"bg-violet-100":    ColorViolet,
		" Amber ":          ColorAmber,
		"text-orange-500":  ColorBlue,
		"":                 ColorBlue,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseCategoryColor(in), in)
	}
}

func TestCategoryColor_Style(t *testing.T) {
	st := ColorRose.Style()
	assert.Equal(t, "text-rose-500", st.TextClass)
	assert.Equal(t, "#f43f5e", st.Hex)

	assert.Equal(t, ColorBlue.Style(), CategoryColor("nope").Style())
}

func TestCategory_UnmarshalLegacyColor(t *testing.T) {
	var c Category
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","name":"Pets","color":"text-cyan-500","type":"EXPENSE"}`), &c))
	assert.Equal(t, ColorCyan, c.Color)
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()
	require.Len(t, cats, 9)

	var income, expense int
	ids := map[string]bool{}
	for _, c := range cats {
		ids[c.ID] = true
		switch c.Type {
		case Income:
			income++
		case Expense:
			expense++
		}
	}
	assert.Equal(t, 3, income)
	assert.Equal(t, 6, expense)
	assert.Len(t, ids, 9)

	cats[0].Name = "changed"
	assert.Equal(t, "Salário", DefaultCategories()[0].Name, "fresh copy per call")
}
