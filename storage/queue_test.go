package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spotstream/spot"
)

func testSpot(dxCall string) spot.Spot {
	return spot.Spot{
		Spotter:      "W3LPL",
		FrequencyKHz: 14050.0,
		DXCall:       dxCall,
		Mode:         spot.ModeCW,
		SNRdB:        25,
		WPM:          22,
		Type:         spot.TypeCQ,
		Time:         spot.ClockTime{Hour: 22, Minute: 59},
	}
}

func TestTenantQueueSequencesStartAtOne(t *testing.T) {
	q := newTenantQueue("dx", 4)

	first, _ := q.append(testSpot("K1ABC"), 10)
	second, _ := q.append(testSpot("K2DEF"), 10)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
}

func TestTenantQueueBoundedWithFIFOEviction(t *testing.T) {
	q := newTenantQueue("dx", 3)

	for i := 0; i < 10; i++ {
		q.append(testSpot(fmt.Sprintf("K%dAA", i)), 10)
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(7), q.OverflowCount())

	spots, latest, overflow := q.List()
	require.Len(t, spots, 3)
	assert.Equal(t, uint64(10), latest)
	assert.Equal(t, uint64(7), overflow)

	// Oldest first, and sequences keep climbing across evictions.
	assert.Equal(t, uint64(8), spots[0].Seq)
	assert.Equal(t, uint64(9), spots[1].Seq)
	assert.Equal(t, uint64(10), spots[2].Seq)
	assert.Equal(t, "K7AA", spots[0].Spot.DXCall)
}

func TestTenantQueueByteAccounting(t *testing.T) {
	q := newTenantQueue("dx", 2)

	_, delta := q.append(testSpot("K1ABC"), 40)
	assert.Equal(t, int64(40), delta)
	_, delta = q.append(testSpot("K2DEF"), 30)
	assert.Equal(t, int64(30), delta)
	assert.Equal(t, int64(70), q.SizeBytes())

	// Full queue: the append evicts the 40-byte entry and adds 50.
	_, delta = q.append(testSpot("K3GHI"), 50)
	assert.Equal(t, int64(10), delta)
	assert.Equal(t, int64(80), q.SizeBytes())
	assert.Equal(t, uint64(1), q.OverflowCount())
}

func TestTenantQueueEvictOldest(t *testing.T) {
	q := newTenantQueue("dx", 4)
	q.append(testSpot("K1ABC"), 40)
	q.append(testSpot("K2DEF"), 30)

	size, ok := q.evictOldest()
	require.True(t, ok)
	assert.Equal(t, 40, size)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, int64(30), q.SizeBytes())

	// Evictions under global pressure count toward the queue's overflow
	// just like entry-budget evictions.
	assert.Equal(t, uint64(1), q.OverflowCount())

	_, ok = q.evictOldest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), q.OverflowCount())
	_, ok = q.evictOldest()
	assert.False(t, ok)
}

func TestTenantQueueListSince(t *testing.T) {
	q := newTenantQueue("dx", 10)
	for i := 0; i < 5; i++ {
		q.append(testSpot(fmt.Sprintf("K%dAA", i)), 10)
	}

	spots, latest, _ := q.ListSince(3)
	require.Len(t, spots, 2)
	assert.Equal(t, uint64(4), spots[0].Seq)
	assert.Equal(t, uint64(5), spots[1].Seq)
	assert.Equal(t, uint64(5), latest)

	// Cursor at or past the latest sequence yields nothing new.
	spots, latest, _ = q.ListSince(5)
	assert.Empty(t, spots)
	assert.Equal(t, uint64(5), latest)

	spots, _, _ = q.ListSince(100)
	assert.Empty(t, spots)
}

func TestTenantQueueEmpty(t *testing.T) {
	q := newTenantQueue("dx", 4)

	spots, latest, overflow := q.List()
	assert.Empty(t, spots)
	assert.Equal(t, uint64(0), latest)
	assert.Equal(t, uint64(0), overflow)
	assert.Equal(t, int64(0), q.SizeBytes())
}
