package stats

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/c360/spotstream/metric"
	"github.com/c360/spotstream/spot"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), metric.NewMetricsRegistry())
}

func cwSpot(snr int) *spot.Spot {
	return &spot.Spot{
		Spotter:      "W3LPL",
		FrequencyKHz: 14050.0,
		DXCall:       "K1ABC",
		Mode:         spot.ModeCW,
		SNRdB:        snr,
		WPM:          24,
		Type:         spot.TypeCQ,
		Time:         spot.ClockTime{Hour: 12, Minute: 0},
	}
}

func TestTrackerTotals(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordLine(80)
	tr.RecordLine(75)
	tr.RecordSpot(cwSpot(25))
	tr.RecordParseError()
	tr.RecordMatches([]string{"cw20", "loud"})
	tr.RecordMatches(nil)

	snap := tr.Snapshot()
	assert.Equal(t, uint64(2), snap.Lines)
	assert.Equal(t, uint64(155), snap.Bytes)
	assert.Equal(t, uint64(1), snap.Spots)
	assert.Equal(t, uint64(1), snap.CWSpots)
	assert.Equal(t, uint64(1), snap.ParseErrors)
	assert.Equal(t, uint64(2), snap.Matched)
}

func TestTrackerCWOnlyCounting(t *testing.T) {
	tr := newTestTracker(t)

	s := cwSpot(20)
	tr.RecordSpot(s)

	rtty := *s
	rtty.Mode = spot.ModeRTTY
	tr.RecordSpot(&rtty)

	snap := tr.Snapshot()
	assert.Equal(t, uint64(2), snap.Spots)
	assert.Equal(t, uint64(1), snap.CWSpots)
}

func TestTrackerRateWindowResets(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordSpot(cwSpot(20))
	first := tr.Snapshot()
	assert.Greater(t, first.Rate, 0.0)

	// No spots since the last snapshot: rate drops to zero while totals
	// stay put.
	second := tr.Snapshot()
	assert.Equal(t, 0.0, second.Rate)
	assert.Equal(t, first.Spots, second.Spots)
}

func TestTrackerWithoutRegistry(t *testing.T) {
	tr := NewTracker(0, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	tr.RecordLine(10)
	tr.RecordSpot(cwSpot(15))
	tr.RecordParseError()
	tr.RecordMatches([]string{"cw20"})

	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.Spots)
}
