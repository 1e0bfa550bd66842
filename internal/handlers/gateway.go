package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/skyloop/engine/internal/dispatcher"
	"github.com/skyloop/engine/internal/sequencer"
	"github.com/skyloop/engine/pkg/core"
)

// commandFrame is one inbound viewer message.
type commandFrame struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// resultFrame answers a command.
type resultFrame struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Outcome any    `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// sourceFrame tells the viewer what to play.
type sourceFrame struct {
	Type      string            `json:"type"`
	Kind      core.IdentityKind `json:"kind"`
	Stage     string            `json:"stage,omitempty"`
	HotspotID string            `json:"hotspotId,omitempty"`
	URL       string            `json:"url"`
	Loop      bool              `json:"loop"`
	Muted     bool              `json:"muted"`
	Autoplay  bool              `json:"autoplay"`
}

// viewerConn is one connected viewer. Writes are serialized through mu;
// the read loop and SetSource both write to the socket.
type viewerConn struct {
	mu   sync.Mutex
	conn *ws.Conn
}

func (v *viewerConn) writeJSON(val any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.WriteJSON(val)
}

// Gateway is the playback surface of the headless engine. Viewers
// connect over a WebSocket, send dispatcher commands in and receive
// source frames out. Every connected viewer mirrors the same playback.
type Gateway struct {
	dispatch *dispatcher.Dispatcher
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu      sync.Mutex
	conns   map[*viewerConn]struct{}
	current *sourceFrame
}

// NewGateway creates a gateway routing inbound frames through d.
func NewGateway(d *dispatcher.Dispatcher, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		dispatch: d,
		logger:   logger,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[*viewerConn]struct{}),
	}
}

// SetSource fans the new source out to every connected viewer and
// remembers it for viewers that connect later.
func (g *Gateway) SetSource(src sequencer.Source) {
	frame := &sourceFrame{
		Type:     "source",
		Kind:     src.Identity.Kind,
		URL:      src.URL,
		Loop:     src.Loop,
		Muted:    src.Muted,
		Autoplay: src.Autoplay,
	}
	if src.Identity.IsSequence() {
		frame.Stage = string(src.Identity.Stage)
		frame.HotspotID = src.Identity.HotspotID.String()
	}

	g.mu.Lock()
	g.current = frame
	conns := make([]*viewerConn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		if err := c.writeJSON(frame); err != nil {
			g.logger.Error("Source write failed", "error", err)
		}
	}
}

// Viewers returns the number of connected viewers.
func (g *Gateway) Viewers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// HandleWS upgrades a viewer connection and pumps its commands into the
// dispatcher until the socket closes.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("Viewer upgrade failed", "error", err)
		return
	}

	vc := &viewerConn{conn: conn}
	g.mu.Lock()
	g.conns[vc] = struct{}{}
	current := g.current
	g.mu.Unlock()

	g.logger.Info("Viewer connected", "remote", conn.RemoteAddr())

	// Late joiners start on whatever is currently playing.
	if current != nil {
		if err := vc.writeJSON(current); err != nil {
			g.logger.Error("Initial source write failed", "error", err)
		}
	}

	defer func() {
		g.mu.Lock()
		delete(g.conns, vc)
		g.mu.Unlock()
		conn.Close()
		g.logger.Info("Viewer disconnected", "remote", conn.RemoteAddr())
	}()

	for {
		var frame commandFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				g.logger.Error("Viewer read failed", "error", err)
			}
			return
		}
		if frame.Command == "" {
			continue
		}

		outcome, err := g.dispatch.Dispatch(dispatcher.Event{
			Command:   frame.Command,
			Payload:   frame.Payload,
			Timestamp: time.Now(),
		})

		result := resultFrame{Type: "result", Command: frame.Command, Outcome: outcome}
		if err != nil {
			result.Error = err.Error()
		}
		if err := vc.writeJSON(result); err != nil {
			g.logger.Error("Result write failed", "error", err)
			return
		}
	}
}
