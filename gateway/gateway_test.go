package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/spotstream/filter"
	"github.com/c360/spotstream/spot"
	"github.com/c360/spotstream/storage"
)

func testManager(t *testing.T) *storage.Manager {
	t.Helper()
	return storage.NewManager(
		storage.Config{GlobalMaxBytes: 1 << 20, DefaultMaxEntries: 10},
		[]filter.Predicate{{Name: "cw20", Bands: []string{"20m"}}},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func ingest(m *storage.Manager, dxCall string) {
	s := spot.Spot{
		Spotter:      "W3LPL",
		FrequencyKHz: 14050.0,
		DXCall:       dxCall,
		Mode:         spot.ModeCW,
		SNRdB:        25,
		WPM:          22,
		Type:         spot.TypeCQ,
		Time:         spot.ClockTime{Hour: 12, Minute: 0},
	}
	m.OnSpot(&s, nil)
}

func newTestServer(t *testing.T, m *storage.Manager) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(":0", m, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, testManager(t))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListFilters(t *testing.T) {
	_, ts := newTestServer(t, testManager(t))

	resp, err := http.Get(ts.URL + "/spots/filters")
	require.NoError(t, err)
	defer resp.Body.Close()

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, []string{"cw20"}, names)
}

func TestGetSpots(t *testing.T) {
	m := testManager(t)
	ingest(m, "K1AAA")
	ingest(m, "K2BBB")
	_, ts := newTestServer(t, m)

	resp, err := http.Get(ts.URL + "/spots/filter/cw20")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body spotsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cw20", body.Filter)
	require.Len(t, body.Spots, 2)
	assert.Equal(t, uint64(1), body.Spots[0].Seq)
	assert.Equal(t, "K1AAA", body.Spots[0].Spot.DXCall)
	assert.Equal(t, uint64(2), body.LatestSeq)
	assert.Equal(t, uint64(0), body.OverflowCount)
}

func TestGetSpotsSinceCursor(t *testing.T) {
	m := testManager(t)
	ingest(m, "K1AAA")
	ingest(m, "K2BBB")
	_, ts := newTestServer(t, m)

	resp, err := http.Get(ts.URL + "/spots/filter/cw20?since=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body spotsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Spots, 1)
	assert.Equal(t, "K2BBB", body.Spots[0].Spot.DXCall)

	// A cursor past the window is empty but still reports the latest seq.
	resp, err = http.Get(ts.URL + "/spots/filter/cw20?since=99")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Spots)
	assert.Equal(t, uint64(2), body.LatestSeq)
}

func TestGetSpotsBadCursor(t *testing.T) {
	_, ts := newTestServer(t, testManager(t))

	resp, err := http.Get(ts.URL + "/spots/filter/cw20?since=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSpotsUnknownFilter(t *testing.T) {
	_, ts := newTestServer(t, testManager(t))

	resp, err := http.Get(ts.URL + "/spots/filter/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "nope")
}

func TestStreamDeliversStoredSpots(t *testing.T) {
	m := testManager(t)
	srv, ts := newTestServer(t, m)
	m.AddObserver(srv.SpotObserver())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/spots/stream/cw20"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The subscriber map is written under the hub lock during the upgrade
	// handshake; give the handler a moment to attach.
	require.Eventually(t, func() bool {
		srv.hub.mu.RLock()
		defer srv.hub.mu.RUnlock()
		return len(srv.hub.subs["cw20"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ingest(m, "K1AAA")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var stored storage.StoredSpot
	require.NoError(t, conn.ReadJSON(&stored))
	assert.Equal(t, uint64(1), stored.Seq)
	assert.Equal(t, "K1AAA", stored.Spot.DXCall)
}

func TestStreamUnknownFilter(t *testing.T) {
	_, ts := newTestServer(t, testManager(t))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/spots/stream/nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
