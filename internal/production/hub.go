package production

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/comalice/tilewall/internal/metrics"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrHubClosed is returned by Broadcast and Send after Close.
	ErrHubClosed = errors.New("hub closed")
	// ErrUnknownTile is returned by Send for an id that is not connected.
	ErrUnknownTile = errors.New("unknown tile")
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithHubMetrics reports connections, drops and frame sizes to m.
func WithHubMetrics(m *metrics.Wall) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithQueueSize bounds each tile's outgoing queue. Messages beyond it are
// dropped for that tile only.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithOnConnect supplies messages sent to a tile right after it connects,
// ahead of any broadcast.
func WithOnConnect(fn func() []primitives.Message) HubOption {
	return func(h *Hub) { h.onConnect = fn }
}

type tileConn struct {
	id     string
	conn   *websocket.Conn
	send   chan *websocket.PreparedMessage
	closed chan struct{}
	once   sync.Once
}

func (c *tileConn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// Hub is the coordinator side of the wire: it accepts tile websockets and
// fans every broadcast out to all of them. It implements
// statesync.Broadcaster.
type Hub struct {
	codec        Codec
	log          *zap.Logger
	metrics      *metrics.Wall
	upgrader     websocket.Upgrader
	queueSize    int
	pingInterval time.Duration
	onConnect    func() []primitives.Message
	dropWarn     *rate.Limiter

	mu     sync.RWMutex
	tiles  map[string]*tileConn
	closed bool
}

// NewHub creates a hub encoding with codec.
func NewHub(codec Codec, opts ...HubOption) *Hub {
	if codec == nil {
		codec = JSONCodec{}
	}
	h := &Hub{
		codec:        codec,
		log:          zap.NewNop(),
		queueSize:    64,
		pingInterval: 30 * time.Second,
		dropWarn:     rate.NewLimiter(rate.Every(5*time.Second), 1),
		tiles:        make(map[string]*tileConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) prepare(msg primitives.Message) (*websocket.PreparedMessage, error) {
	data, err := h.codec.Encode(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s message", msg.Type)
	}
	if h.metrics != nil {
		h.metrics.SnapshotBytes.Observe(float64(len(data)), string(msg.Type))
	}
	pm, err := websocket.NewPreparedMessage(h.codec.FrameType(), data)
	if err != nil {
		return nil, errors.Wrap(err, "prepare websocket frame")
	}
	return pm, nil
}

// Broadcast encodes msg once and queues it for every connected tile. A tile
// whose queue is full misses the message; broadcasting never blocks on a
// slow tile.
func (h *Hub) Broadcast(msg primitives.Message) error {
	pm, err := h.prepare(msg)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for _, t := range h.tiles {
		h.enqueue(t, pm, msg.Type)
	}
	return nil
}

// Send queues msg for one tile.
func (h *Hub) Send(id string, msg primitives.Message) error {
	pm, err := h.prepare(msg)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	t, ok := h.tiles[id]
	if !ok {
		return errors.Wrap(ErrUnknownTile, id)
	}
	h.enqueue(t, pm, msg.Type)
	return nil
}

func (h *Hub) enqueue(t *tileConn, pm *websocket.PreparedMessage, typ primitives.MessageType) {
	select {
	case t.send <- pm:
	default:
		if h.metrics != nil {
			h.metrics.Dropped.Increment()
		}
		if h.dropWarn.Allow() {
			h.log.Warn("tile queue full, dropping message",
				zap.String("tile", t.id), zap.String("type", string(typ)))
		}
	}
}

// Len returns the number of connected tiles.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tiles)
}

// Tiles returns the ids of connected tiles, sorted.
func (h *Hub) Tiles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.tiles))
	for id := range h.tiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Handler mounts the hub on a gin router.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ServeHTTP upgrades the request and serves the tile until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}
	t := &tileConn{
		id:     r.URL.Query().Get("tile"),
		conn:   conn,
		send:   make(chan *websocket.PreparedMessage, h.queueSize),
		closed: make(chan struct{}),
	}
	if t.id == "" {
		t.id = uuid.NewString()
	}
	// the greeting is queued before the tile becomes visible to broadcasts
	if h.onConnect != nil {
		for _, msg := range h.onConnect() {
			if pm, err := h.prepare(msg); err == nil {
				h.enqueue(t, pm, msg.Type)
			} else {
				h.log.Error("failed to prepare greeting", zap.Error(err))
			}
		}
	}

	if !h.register(t) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.unregister(t)

	go h.writeLoop(t)
	h.readLoop(t)
}

func (h *Hub) register(t *tileConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if old, ok := h.tiles[t.id]; ok {
		h.log.Info("tile reconnected, replacing connection", zap.String("tile", t.id))
		old.close()
	}
	h.tiles[t.id] = t
	h.gauge()
	h.log.Info("tile connected", zap.String("tile", t.id), zap.Int("tiles", len(h.tiles)))
	return true
}

func (h *Hub) unregister(t *tileConn) {
	t.close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.tiles[t.id]; ok && cur == t {
		delete(h.tiles, t.id)
	}
	h.gauge()
	h.log.Info("tile disconnected", zap.String("tile", t.id), zap.Int("tiles", len(h.tiles)))
}

func (h *Hub) gauge() {
	if h.metrics != nil {
		h.metrics.Tiles.Set(float64(len(h.tiles)))
	}
}

// readLoop discards everything tiles send; reading is what keeps pongs and
// close frames flowing.
func (h *Hub) readLoop(t *tileConn) {
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket closed unexpectedly", zap.String("tile", t.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(t *tileConn) {
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	defer t.close()
	for {
		select {
		case <-t.closed:
			return
		case pm := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WritePreparedMessage(pm); err != nil {
				h.log.Warn("websocket write failed", zap.String("tile", t.id), zap.Error(err))
				return
			}
		case <-ping.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.log.Warn("failed to send ping", zap.String("tile", t.id), zap.Error(err))
				return
			}
		}
	}
}

// Close disconnects every tile. Later broadcasts fail with ErrHubClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	tiles := make([]*tileConn, 0, len(h.tiles))
	for _, t := range h.tiles {
		tiles = append(tiles, t)
	}
	h.mu.Unlock()

	for _, t := range tiles {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		t.close()
	}
	return nil
}
