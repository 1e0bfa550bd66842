package bytecache

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/skyloop/engine/pkg/streaming"
)

// Service exposes the store over HTTP and WebSocket. The HTTP side is
// cache-first: cached bodies are served from memory, everything else is
// fetched upstream and cached when the response is a full 200.
type Service struct {
	store    *Store
	upstream http.Handler
	logger   *slog.Logger
	upgrader ws.Upgrader
}

// NewService creates a service over store. Requests for URLs that are
// not cached fall through to upstream.
func NewService(store *Store, upstream http.Handler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		upstream: upstream,
		logger:   logger,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP serves a request cache-first. Range requests against a
// cached body are honored from memory; the full body was cached, so
// partial reads never reach upstream.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		if body, contentType, ok := s.store.Get(r.URL.RequestURI()); ok {
			if contentType != "" {
				w.Header().Set("Content-Type", contentType)
			}
			http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(body))
			return
		}
	}
	s.upstream.ServeHTTP(w, r)
}

// wsSession is one control connection. Writes are serialized through a
// mutex because warm batches report progress from their own goroutine.
type wsSession struct {
	mu   sync.Mutex
	conn *ws.Conn
}

func (c *wsSession) writeEnvelope(msgType string, payload any) error {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(env)
}

// HandleWS upgrades the request and processes control messages until
// the peer disconnects.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	sess := &wsSession{conn: conn}
	defer conn.Close()

	for {
		var env streaming.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		switch env.Type {
		case streaming.TypeCacheVideos, streaming.TypeCacheImages:
			var req streaming.CacheRequest
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				s.logger.Error("bad cache request payload", "error", err)
				continue
			}
			s.warmBatch(r.Context(), sess, req)

		case streaming.TypeCheckCacheVersion:
			if err := sess.writeEnvelope(streaming.TypeCacheVersion,
				streaming.CacheVersion{Version: s.store.Version()}); err != nil {
				return
			}

		case streaming.TypeClearCaches:
			s.store.Clear()
			s.logger.Info("caches cleared by client request")
			if err := sess.writeEnvelope(streaming.TypeCachesCleared, struct{}{}); err != nil {
				return
			}

		default:
			s.logger.Debug("unknown message type", "type", env.Type)
		}
	}
}

// warmBatch fetches every requested URL, emitting progress per item and
// an error message per failed item. Failures never abort the batch.
func (s *Service) warmBatch(ctx context.Context, sess *wsSession, req streaming.CacheRequest) {
	items := req.Batch()
	total := len(items)
	completed := 0
	failed := 0

	for _, item := range items {
		if err := s.store.Warm(ctx, item.URL); err != nil {
			failed++
			s.logger.Error("warming cache entry", "id", item.ID, "url", item.URL, "error", err)
			sess.writeEnvelope(streaming.TypeCacheError, streaming.CacheError{
				ClientID: req.ClientID,
				ID:       item.ID,
				URL:      item.URL,
				Error:    err.Error(),
			})
			continue
		}
		completed++
		sess.writeEnvelope(streaming.TypeCacheProgress, streaming.CacheProgress{
			ClientID:  req.ClientID,
			ID:        item.ID,
			URL:       item.URL,
			Completed: completed,
			Total:     total,
		})
	}

	sess.writeEnvelope(streaming.TypeCacheComplete, streaming.CacheComplete{
		ClientID: req.ClientID,
		Cached:   completed,
		Failed:   failed,
	})
}
