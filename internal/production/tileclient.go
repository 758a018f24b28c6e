package production

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MessageHandler receives every decoded message, in arrival order.
type MessageHandler func(msg primitives.Message)

// TileClientConfig configures a TileClient.
type TileClientConfig struct {
	URL    string
	TileID string
	Codec  Codec
	Logger *zap.Logger
	// MaxBackoff caps the delay between reconnect attempts.
	MaxBackoff time.Duration
	// OnConnect and OnDisconnect observe the connection state. Optional.
	OnConnect    func()
	OnDisconnect func(err error)
}

// TileClient keeps a tile connected to the coordinator hub, reconnecting
// with exponential backoff until its context ends.
type TileClient struct {
	cfg     TileClientConfig
	log     *zap.Logger
	handler MessageHandler
	dialer  *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewTileClient creates a client delivering messages to handler.
func NewTileClient(cfg TileClientConfig, handler MessageHandler) (*TileClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("tile client: empty url")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, errors.Wrap(err, "tile client: bad url")
	}
	if handler == nil {
		return nil, errors.New("tile client: nil handler")
	}
	if cfg.Codec == nil {
		cfg.Codec = JSONCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	d := *websocket.DefaultDialer
	d.Proxy = nil
	return &TileClient{
		cfg:     cfg,
		log:     cfg.Logger.Named("tileclient"),
		handler: handler,
		dialer:  &d,
	}, nil
}

func (c *TileClient) target() string {
	if c.cfg.TileID == "" {
		return c.cfg.URL
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return c.cfg.URL
	}
	q := u.Query()
	q.Set("tile", c.cfg.TileID)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *TileClient) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

func (c *TileClient) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, _, err = c.dialer.DialContext(ctx, c.target(), nil)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("coordinator unreachable, retrying", zap.Error(err), zap.Duration("in", wait))
	}
	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		return nil, errors.Wrap(err, "dial coordinator")
	}
	return conn, nil
}

// Run connects and serves messages until ctx is done. Connection losses are
// retried; Run returns only ctx.Err().
func (c *TileClient) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.setConn(conn)
		c.log.Info("connected to coordinator", zap.String("url", c.cfg.URL))
		if c.cfg.OnConnect != nil {
			c.cfg.OnConnect()
		}

		stop := context.AfterFunc(ctx, func() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		})
		err = c.read(conn)
		stop()
		_ = conn.Close()
		c.setConn(nil)

		if c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("lost coordinator connection", zap.Error(err))
	}
}

func (c *TileClient) read(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		msg, err := c.cfg.Codec.Decode(data)
		if err != nil {
			c.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		if err := msg.Validate(); err != nil {
			c.log.Warn("dropping invalid message", zap.Error(err))
			continue
		}
		c.handler(msg)
	}
}

func (c *TileClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// Connected reports whether a connection is currently up.
func (c *TileClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
