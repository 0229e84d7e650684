package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func names(jobs []Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubJob{name: "reminders"}, 0))
	require.Error(t, registry.Register(&stubJob{name: "reminders"}, time.Hour))
	require.Error(t, registry.Register(nil, 0))
	assert.Len(t, registry.Jobs(), 1)
}

func TestRegistryDueHonoursCadence(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubJob{name: "reminders"}, 0))
	require.NoError(t, registry.Register(&stubJob{name: "cleanup"}, time.Hour))

	start := time.Date(2026, 3, 6, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"reminders", "cleanup"}, names(registry.Due(start)))
	assert.Equal(t, []string{"reminders"}, names(registry.Due(start.Add(time.Minute))))
	assert.Equal(t, []string{"reminders"}, names(registry.Due(start.Add(59*time.Minute))))
	assert.Equal(t, []string{"reminders", "cleanup"}, names(registry.Due(start.Add(time.Hour))))
}
