package progress

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const redialDelay = 5 * time.Second

// WSSink streams events to a dashboard over a websocket. Events are buffered
// and dropped when the buffer is full or the dashboard is unreachable.
type WSSink struct {
	endpoint string
	token    string
	log      *slog.Logger

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewWSSink accepts http(s) or ws(s) URLs.
func NewWSSink(rawURL, token string, log *slog.Logger) (*WSSink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("progress url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("progress url: unsupported scheme %q", u.Scheme)
	}
	if log == nil {
		log = slog.Default()
	}
	return &WSSink{
		endpoint: u.String(),
		token:    token,
		log:      log,
		events:   make(chan Event, 200),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the sender until Close or ctx is done.
func (s *WSSink) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.loop(ctx)
}

func (s *WSSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
	}
}

// Close flushes buffered events and waits for the sender to exit.
func (s *WSSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *WSSink) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, fmt.Errorf("%w (url=%s status=%d)", err, s.endpoint, status)
	}
	return conn, nil
}

func (s *WSSink) loop(ctx context.Context) {
	defer close(s.done)
	var (
		conn     *websocket.Conn
		lastFail time.Time
	)
	defer func() {
		if conn != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		}
	}()
	for {
		var (
			ev Event
			ok bool
		)
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-s.events:
			if !ok {
				return
			}
		}
		if conn == nil {
			if !lastFail.IsZero() && time.Since(lastFail) < redialDelay {
				continue
			}
			c, err := s.dial(ctx)
			if err != nil {
				s.log.Warn("progress dial failed", "error", err)
				lastFail = time.Now()
				continue
			}
			conn = c
			s.log.Debug("progress stream connected", "url", s.endpoint)
		}
		msg := map[string]any{"type": "pricecheck_progress", "payload": ev}
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Warn("progress send failed", "error", err)
			_ = conn.Close()
			conn = nil
			lastFail = time.Now()
		}
	}
}
