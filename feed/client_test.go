package feed

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the telnet dialect: login prompt with no
// trailing newline, banner ending in '>', then the configured lines.
func fakeServer(t *testing.T, lines []string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.Write([]byte("Please enter your call: "))

		reader := bufio.NewReader(conn)
		callsign, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		conn.Write([]byte(strings.TrimSpace(callsign) + " de RELAY 08-Jan-2026 03:13Z >\r\n"))

		for _, line := range lines {
			conn.Write([]byte(line + "\r\n"))
		}
	}()

	return ln.Addr().String()
}

func TestClientLoginAndStream(t *testing.T) {
	want := []string{
		"DX de W3LPL-#:   14050.0  K1ABC      CW    25 dB  22 WPM  CQ      2259Z",
		"DX de DK9IP-#:    7025.5  F6ABC      CW    12 dB  30 WPM  CQ      2300Z",
	}
	addr := fakeServer(t, want)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	client := NewClient(Config{
		Callsign:       "W6JSV",
		Addr:           addr,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
	}, func(line string) {
		mu.Lock()
		got = append(got, line)
		if len(got) == len(want) {
			close(done)
		}
		mu.Unlock()
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for lines")
	}

	// Server closes after the last line; with Reconnect off Run returns.
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("client did not return after disconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestClientDialFailureWithoutReconnect(t *testing.T) {
	// A listener that is immediately closed yields a dialable-but-refused
	// address.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(Config{
		Callsign:       "W6JSV",
		Addr:           addr,
		ConnectTimeout: time.Second,
	}, func(string) {}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	err = client.Run(context.Background())
	require.Error(t, err)
}

func TestClientStopsOnContextCancel(t *testing.T) {
	addr := fakeServer(t, nil)

	client := NewClient(Config{
		Callsign:       "W6JSV",
		Addr:           addr,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    30 * time.Second,
		Reconnect:      true,
	}, func(string) {}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop on cancel")
	}
}
