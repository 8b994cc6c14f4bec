package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/internal/fixedpoint"
	"github.com/fd1az/synth-indexer/pkg/ui/components"
)

func dashboardModel(t *testing.T, fetch Fetcher) Model {
	t.Helper()
	m := New(fetch, time.Second, 2)
	updated, _ := m.Update(StartupMsg{Step: "ingestion", Status: "done"})
	return updated.(Model)
}

func snapshot() SnapshotMsg {
	return SnapshotMsg{
		Interval: "1m",
		Prices: []components.PriceRow{
			{Symbol: "mAAPL", Price: fixedpoint.MustParse("150.25")},
		},
		Positions: []components.PositionRow{
			{ID: "a", Ratio: fixedpoint.MustParse("2"), Risk: "safe"},
			{ID: "b", Ratio: fixedpoint.MustParse("1.4"), Risk: "warning"},
			{ID: "c", Ratio: fixedpoint.MustParse("1.1"), Risk: "liquidatable"},
		},
		Undefined: 1,
		Checks:    []components.CheckStatus{{Name: "candles", Healthy: true, Message: "ok"}},
		At:        time.Now(),
	}
}

func TestModel_IngestionDoneEntersDashboardAndFetches(t *testing.T) {
	m := New(func(context.Context) (SnapshotMsg, error) { return snapshot(), nil }, time.Second, 2)
	assert.Equal(t, PhaseWelcome, m.phase)

	updated, cmd := m.Update(StartupMsg{Step: "ingestion", Status: "done"})
	m = updated.(Model)

	assert.Equal(t, PhaseDashboard, m.phase)
	assert.True(t, m.fetching)
	require.NotNil(t, cmd)

	msg := cmd()
	_, ok := msg.(SnapshotMsg)
	assert.True(t, ok, "fetch command should yield a snapshot")
}

func TestModel_SnapshotUpdatesComponentsAndStats(t *testing.T) {
	m := dashboardModel(t, nil)

	updated, cmd := m.Update(snapshot())
	m = updated.(Model)

	assert.NotNil(t, cmd, "next refresh is scheduled")
	assert.Equal(t, 1, m.prices.Len())
	assert.Len(t, m.positions.Rows(), 3)
	assert.Equal(t, "c", m.positions.Rows()[0].ID, "lowest ratio first")
	assert.True(t, m.status.Healthy())

	stats := m.stats.Stats()
	assert.Equal(t, int64(1), stats.Refreshes)
	assert.Equal(t, 1, stats.Symbols)
	assert.Equal(t, 3, stats.Positions)
	assert.Equal(t, 1, stats.Warning)
	assert.Equal(t, 1, stats.Liquidatable)
}

func TestModel_FetchErrorKeepsLastThree(t *testing.T) {
	m := dashboardModel(t, nil)

	for i := 0; i < 5; i++ {
		updated, _ := m.Update(ErrorMsg{Error: errors.New("source down")})
		m = updated.(Model)
	}
	assert.Len(t, m.errors, 3)
	assert.Equal(t, int64(5), m.stats.Stats().Errors)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	m = updated.(Model)
	assert.Empty(t, m.errors)
}

func TestModel_PausedRefreshSkipsFetch(t *testing.T) {
	calls := 0
	m := dashboardModel(t, func(context.Context) (SnapshotMsg, error) {
		calls++
		return snapshot(), nil
	})
	updated, _ := m.Update(snapshot())
	m = updated.(Model)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = updated.(Model)
	require.True(t, m.paused)

	updated, cmd := m.Update(RefreshMsg{})
	m = updated.(Model)
	assert.False(t, m.fetching)
	assert.NotNil(t, cmd, "refresh stays scheduled while paused")
	assert.Equal(t, 0, calls)
}

func TestModel_QuitKey(t *testing.T) {
	m := New(nil, time.Second, 2)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.True(t, updated.(Model).quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
