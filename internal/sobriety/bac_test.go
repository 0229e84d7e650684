package sobriety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

func TestAlcoholML(t *testing.T) {
	assert.InDelta(t, 42.6, AlcoholML(12, 355), 1e-9)
	assert.Zero(t, AlcoholML(0, 355))
	assert.Zero(t, AlcoholML(5, -1))
}

func TestEstimateBAC(t *testing.T) {
	cases := []struct {
		name    string
		ml      float64
		weight  float64
		sex     enums.BiologicalSex
		elapsed time.Duration
		want    float64
	}{
		{"one drink male", 42.6, 80, enums.SexMale, 0, 0.062},
		{"decays two hours", 42.6, 80, enums.SexMale, 2 * time.Hour, 0.032},
		{"two drinks female", 85.2, 60, enums.SexFemale, 0, 0.204},
		{"unspecified ratio", 42.6, 80, enums.SexUnspecified, 0, 0.068},
		{"floors at zero", 42.6, 80, enums.SexMale, 6 * time.Hour, 0},
		{"no alcohol", 0, 80, enums.SexMale, 0, 0},
		{"no weight", 42.6, 0, enums.SexMale, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, EstimateBAC(tc.ml, tc.weight, tc.sex, tc.elapsed), 1e-9)
		})
	}
}

func TestBACDecaysLinearly(t *testing.T) {
	start := EstimateBAC(127.8, 80, enums.SexMale, 0)
	oneHour := EstimateBAC(127.8, 80, enums.SexMale, time.Hour)
	twoHours := EstimateBAC(127.8, 80, enums.SexMale, 2*time.Hour)
	assert.InDelta(t, 0.015, start-oneHour, 0.0011)
	assert.InDelta(t, 0.015, oneHour-twoHours, 0.0011)
}

func TestIsSafeToOrder(t *testing.T) {
	assert.True(t, IsSafeToOrder(0))
	assert.True(t, IsSafeToOrder(0.079))
	assert.False(t, IsSafeToOrder(0.08))
	assert.False(t, IsSafeToOrder(0.2))
}

func TestSeverityFor(t *testing.T) {
	_, ok := SeverityFor(0.049)
	assert.False(t, ok)
	sev, _ := SeverityFor(0.05)
	assert.Equal(t, enums.AlertSeverityCaution, sev)
	sev, _ = SeverityFor(0.08)
	assert.Equal(t, enums.AlertSeverityWarning, sev)
	sev, _ = SeverityFor(0.15)
	assert.Equal(t, enums.AlertSeverityDanger, sev)
}

func TestReadingAdvisory(t *testing.T) {
	low := 90.0
	normal := 98.0
	fast := 140
	calm := 80

	_, ok := ReadingAdvisory(&calm, &normal)
	assert.False(t, ok)
	_, ok = ReadingAdvisory(nil, &low)
	assert.True(t, ok)
	_, ok = ReadingAdvisory(&fast, nil)
	assert.True(t, ok)
	_, ok = ReadingAdvisory(nil, nil)
	assert.False(t, ok)
}
