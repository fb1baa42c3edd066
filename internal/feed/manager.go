// Package feed owns the streaming market-data connection: its lifecycle
// state machine, heartbeat keep-alive, exponential-backoff reconnection, and
// the layered fallback chain (stream → REST snapshot → synthetic data) that
// keeps the dashboard populated when the feed is unusable.
package feed

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

// SnapshotFetcher performs the one-shot REST ticker fetch used by the first
// fallback tier.
type SnapshotFetcher interface {
	Ticker24h(ctx context.Context, symbol string) (domain.TickerSnapshot, error)
}

// Config holds the manager's connection and recovery parameters.
type Config struct {
	URL     string
	Symbols []string

	HeartbeatInterval time.Duration

	// Backoff: delay = min(ReconnectBase * ReconnectFactor^attempt, ReconnectCap).
	ReconnectBase        time.Duration
	ReconnectFactor      float64
	ReconnectCap         time.Duration
	MaxReconnectAttempts int

	// FallbackGrace bounds the wait for first data: if the feed has not
	// reached connected within this window, the fallback path runs regardless
	// of retry state.
	FallbackGrace time.Duration

	SyntheticTick time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Symbols) == 0 {
		c.Symbols = domain.Symbols
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectFactor < 1 {
		c.ReconnectFactor = 1.5
	}
	if c.ReconnectCap <= 0 {
		c.ReconnectCap = 15 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 8
	}
	if c.FallbackGrace <= 0 {
		c.FallbackGrace = 3 * time.Second
	}
	if c.SyntheticTick <= 0 {
		c.SyntheticTick = 5 * time.Second
	}
	return c
}

// eventKind names the state-machine transitions. Every transport callback
// and timer funnels through one dispatch path, so transitions are serialized
// and unit-testable.
type eventKind int

const (
	evConnectRequested eventKind = iota
	evDisconnectRequested
	evDialSucceeded
	evDialFailed
	evMessageReceived
	evConnClosed
	evHeartbeatDue
	evReconnectDue
	evGuardExpired
)

// event is the single inbound event type of the connection state machine.
type event struct {
	kind    eventKind
	gen     uint64
	conn    Conn
	payload []byte
	code    int
	err     error
}

// pingMessage is the keepalive payload written on each heartbeat.
type pingMessage struct {
	Type string `json:"type"`
}

// Manager maintains at most one active streaming connection, recovers from
// failures with capped exponential backoff, and engages the fallback chain
// when the retry budget is spent or first data does not arrive in time.
type Manager struct {
	cfg     Config
	state   *market.State
	ingest  *Ingestor
	dialer  Dialer
	fetcher SnapshotFetcher
	synth   *Synthetic
	logger  *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	status    domain.ConnectionStatus
	conn      Conn
	gen       uint64 // invalidates in-flight dials and read loops
	attempts  int
	exhausted bool // fallback engaged for the current outage

	heartbeatTimer *time.Timer
	reconnectTimer *time.Timer
	guardTimer     *time.Timer
}

// NewManager creates a Manager. fetcher may be nil, in which case the
// fallback path goes straight to the synthetic tier.
func NewManager(cfg Config, state *market.State, ingest *Ingestor, dialer Dialer, fetcher SnapshotFetcher, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:     cfg,
		state:   state,
		ingest:  ingest,
		dialer:  dialer,
		fetcher: fetcher,
		synth:   NewSynthetic(state, cfg.Symbols, cfg.SyntheticTick, logger),
		logger:  logger.With(slog.String("component", "feed_manager")),
		status:  domain.StatusDisconnected,
	}
}

// Start arms the fallback-guard timer and begins connecting. The context
// governs the manager's lifetime: when it is cancelled the manager
// disconnects.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.guardTimer = time.AfterFunc(m.cfg.FallbackGrace, func() {
		m.dispatch(event{kind: evGuardExpired})
	})
	m.mu.Unlock()

	m.Connect()

	go func() {
		<-ctx.Done()
		m.Disconnect()
	}()
}

// Connect opens the streaming connection. It is a no-op while a connection
// is established or being established; after exhaustion it re-enters the
// connecting state with a fresh retry budget.
func (m *Manager) Connect() {
	m.dispatch(event{kind: evConnectRequested})
}

// Disconnect cancels all pending timers synchronously, stops the synthetic
// generator, and closes the transport with a normal-closure code. Safe to
// call repeatedly and when already disconnected.
func (m *Manager) Disconnect() {
	m.dispatch(event{kind: evDisconnectRequested})
}

// Status returns the current connection status.
func (m *Manager) Status() domain.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// dispatch serializes one event through the state machine. Work that must
// not run under the lock (ingestion, fallback fetches) is returned by the
// handler and executed after unlock.
func (m *Manager) dispatch(ev event) {
	m.mu.Lock()
	followUp := m.handleLocked(ev)
	m.mu.Unlock()
	if followUp != nil {
		followUp()
	}
}

func (m *Manager) handleLocked(ev event) func() {
	switch ev.kind {
	case evConnectRequested:
		if m.status == domain.StatusConnecting || m.status == domain.StatusConnected {
			return nil
		}
		if m.exhausted {
			// Explicit reconnect after exhaustion gets a fresh budget.
			m.attempts = 0
			m.exhausted = false
		}
		m.startDialLocked()
		return nil

	case evDisconnectRequested:
		m.stopTimersLocked()
		m.gen++
		m.synth.Stop()
		if m.conn != nil {
			conn := m.conn
			m.conn = nil
			m.setStatusLocked(domain.StatusDisconnected)
			return func() { _ = conn.Close(websocket.CloseNormalClosure, "client disconnect") }
		}
		m.setStatusLocked(domain.StatusDisconnected)
		return nil

	case evDialSucceeded:
		if ev.gen != m.gen {
			conn := ev.conn
			return func() { _ = conn.Close(websocket.CloseNormalClosure, "superseded") }
		}
		m.conn = ev.conn
		m.attempts = 0
		m.exhausted = false
		m.setStatusLocked(domain.StatusConnected)
		m.stopGuardLocked()
		m.scheduleHeartbeatLocked()
		go m.readLoop(ev.gen, ev.conn)
		m.logger.Info("feed connected")
		return nil

	case evDialFailed:
		if ev.gen != m.gen {
			return nil
		}
		m.logger.Warn("feed dial failed",
			slog.String("error", ev.err.Error()),
			slog.Int("attempts", m.attempts),
		)
		m.setStatusLocked(domain.StatusError)
		return m.failureLocked()

	case evMessageReceived:
		if ev.gen != m.gen {
			return nil
		}
		payload := ev.payload
		return func() { m.ingest.HandleMessage(m.ctx, payload) }

	case evConnClosed:
		if ev.gen != m.gen {
			return nil
		}
		m.conn = nil
		m.stopHeartbeatLocked()
		switch ev.code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			m.setStatusLocked(domain.StatusDisconnected)
			return nil
		case 0:
			// Read error without a close frame.
			m.logger.Warn("feed read failed",
				slog.String("error", ev.err.Error()),
			)
			m.setStatusLocked(domain.StatusError)
		default:
			m.logger.Warn("feed closed abnormally",
				slog.Int("code", ev.code),
			)
			m.setStatusLocked(domain.StatusDisconnected)
		}
		return m.failureLocked()

	case evHeartbeatDue:
		if ev.gen != m.gen || m.conn == nil {
			return nil
		}
		if err := m.conn.WriteJSON(pingMessage{Type: "ping"}); err != nil {
			// Failed keepalive: tear the connection down and retry now.
			m.logger.Warn("heartbeat send failed, reconnecting",
				slog.String("error", err.Error()),
			)
			conn := m.conn
			m.conn = nil
			m.gen++
			m.setStatusLocked(domain.StatusError)
			followUp := m.failureLocked()
			return func() {
				_ = conn.Close(websocket.CloseNormalClosure, "heartbeat failed")
				if followUp != nil {
					followUp()
				}
			}
		}
		m.scheduleHeartbeatLocked()
		return nil

	case evReconnectDue:
		if m.status == domain.StatusConnected {
			return nil
		}
		m.startDialLocked()
		return nil

	case evGuardExpired:
		if m.status == domain.StatusConnected {
			return nil
		}
		m.logger.Warn("no feed data within grace period, engaging fallback")
		return func() { m.runFallback() }
	}
	return nil
}

// failureLocked routes a connection failure: retry while the budget remains,
// otherwise engage the fallback path exactly once per outage.
func (m *Manager) failureLocked() func() {
	if m.attempts < m.cfg.MaxReconnectAttempts {
		m.attemptReconnectLocked()
		return nil
	}
	if m.exhausted {
		return nil
	}
	m.exhausted = true
	m.logger.Warn("reconnect budget exhausted, engaging fallback",
		slog.Int("attempts", m.attempts),
	)
	return func() { m.runFallback() }
}

// attemptReconnectLocked increments the retry counter and schedules the next
// dial after a capped exponential delay.
func (m *Manager) attemptReconnectLocked() {
	m.attempts++
	delay := time.Duration(float64(m.cfg.ReconnectBase) * math.Pow(m.cfg.ReconnectFactor, float64(m.attempts)))
	if delay > m.cfg.ReconnectCap {
		delay = m.cfg.ReconnectCap
	}
	m.logger.Info("scheduling reconnect",
		slog.Int("attempt", m.attempts),
		slog.Duration("delay", delay),
	)
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.dispatch(event{kind: evReconnectDue})
	})
}

func (m *Manager) startDialLocked() {
	m.setStatusLocked(domain.StatusConnecting)
	m.gen++
	gen := m.gen
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		conn, err := m.dialer.Dial(ctx, m.cfg.URL)
		if err != nil {
			m.dispatch(event{kind: evDialFailed, gen: gen, err: err})
			return
		}
		m.dispatch(event{kind: evDialSucceeded, gen: gen, conn: conn})
	}()
}

// readLoop pumps inbound messages into the state machine until the
// connection dies. It runs in its own goroutine, one per connection.
func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			m.dispatch(event{kind: evConnClosed, gen: gen, code: closeCode(err), err: err})
			return
		}
		m.dispatch(event{kind: evMessageReceived, gen: gen, payload: msg})
	}
}

// runFallback performs the snapshot tier for every tracked symbol, dropping
// to the synthetic tier per symbol when the fetch fails. Writes race
// benignly with a concurrent reconnect; last write wins.
func (m *Manager) runFallback() {
	ctx := m.lifecycleCtx()
	for _, symbol := range m.cfg.Symbols {
		if m.fetcher != nil {
			snap, err := m.fetcher.Ticker24h(ctx, symbol)
			if err == nil {
				m.state.UpdateTicker(symbol, domain.TickerUpdate{
					Price:         domain.Float(snap.Price),
					Change:        domain.Float(snap.Change),
					ChangePercent: domain.Float(snap.ChangePercent),
					Volume:        domain.Float(snap.Volume),
					High:          domain.Float(snap.High),
					Low:           domain.Float(snap.Low),
				})
				continue
			}
			m.logger.Warn("snapshot fetch failed, using synthetic data",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
		m.synth.Seed(symbol)
	}
	m.synth.Start()
}

func (m *Manager) lifecycleCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

func (m *Manager) setStatusLocked(status domain.ConnectionStatus) {
	m.status = status
	if m.state != nil {
		m.state.SetConnectionStatus(status)
	}
}

func (m *Manager) scheduleHeartbeatLocked() {
	gen := m.gen
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
	}
	m.heartbeatTimer = time.AfterFunc(m.cfg.HeartbeatInterval, func() {
		m.dispatch(event{kind: evHeartbeatDue, gen: gen})
	})
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
}

func (m *Manager) stopGuardLocked() {
	if m.guardTimer != nil {
		m.guardTimer.Stop()
		m.guardTimer = nil
	}
}

func (m *Manager) stopTimersLocked() {
	m.stopHeartbeatLocked()
	m.stopGuardLocked()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}
