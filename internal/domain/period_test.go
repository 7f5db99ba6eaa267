package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{in: "2024-03", want: "2024-03"},
		{in: " 2023-12 ", want: "2023-12"},
		{in: "2024-13", wantErr: true},
		{in: "2024-00", wantErr: true},
		{in: "2024/03", wantErr: true},
		{in: "24-03", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				var v *ErrValidation
				require.ErrorAs(t, err, &v)
				assert.Equal(t, "period", v.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_Contains(t *testing.T) {
	p := Period("2024-03")
	assert.True(t, p.Contains("2024-03-01"))
	assert.True(t, p.Contains("2024-03-31"))
	assert.False(t, p.Contains("2024-04-01"))
	assert.False(t, p.Contains("2023-03-15"))
	assert.Equal(t, "2024-03-01", p.FirstDay())
}

func TestTransaction_Period(t *testing.T) {
	assert.Equal(t, Period("2024-03"), Transaction{Date: "2024-03-09"}.Period())
}

func TestEnergyBill_Savings(t *testing.T) {
	b := EnergyBill{KWh: 450, ProviderATotal: 300, ProviderBTotal: 210}
	assert.InDelta(t, 90.0, b.Savings(), 1e-9)
}

func TestRemoteSession_Expired(t *testing.T) {
	var s RemoteSession
	assert.False(t, s.Expired(mustTime(t, "2024-03-01T00:00:00Z")), "zero expiry never expires")

	s.ExpiresAt = mustTime(t, "2024-03-01T12:00:00Z")
	assert.False(t, s.Expired(mustTime(t, "2024-03-01T11:59:59Z")))
	assert.True(t, s.Expired(mustTime(t, "2024-03-01T12:00:00Z")))
}

func TestSession_CloneSharesNothing(t *testing.T) {
	p := Period("2024-03")
	s := Session{User: &UserProfile{Email: "ana@finanzo.app"}, Period: &p}

	c := s.Clone()
	c.User.Email = "other@finanzo.app"
	*c.Period = "2020-01"

	assert.Equal(t, "ana@finanzo.app", s.User.Email)
	assert.Equal(t, Period("2024-03"), *s.Period)
}
