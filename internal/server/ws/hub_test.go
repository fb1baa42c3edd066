package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketdash/internal/alert"
	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

// The alert store must plug into Attach directly.
var _ AlertSource = (*alert.Store)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	state := market.New(context.Background(), nil, discardLogger())
	return NewHub(state, discardLogger())
}

// fakeAlertSource captures the handler Attach registers.
type fakeAlertSource struct {
	handler func(domain.TriggeredAlert)
}

func (f *fakeAlertSource) OnTriggered(h func(domain.TriggeredAlert)) { f.handler = h }

func TestAttachForwardsAlertTriggers(t *testing.T) {
	h := newTestHub(t)
	src := &fakeAlertSource{}
	h.Attach(src)
	if src.handler == nil {
		t.Fatal("Attach must register a trigger handler")
	}

	src.handler(domain.TriggeredAlert{AlertID: "a1", Symbol: "BTCUSDT", Price: 46000})

	select {
	case data := <-h.broadcast:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if env.Type != "alert_triggered" {
			t.Errorf("type = %q, want alert_triggered", env.Type)
		}
	default:
		t.Fatal("trigger must queue a broadcast")
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	h.Broadcast("ticker", domain.TickerSnapshot{Symbol: "BTCUSDT", Price: 45000})

	// The connect snapshot arrives first; scan until the live update shows up.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Type == "ticker" {
			return
		}
	}
}

func TestHandleWSReturnsAfterShutdown(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	<-stopped

	returned := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleWS(w, r)
		close(returned)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		defer conn.Close()
	}

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("handler must return once the hub has stopped")
	}
}
