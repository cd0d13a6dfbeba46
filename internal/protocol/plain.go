package protocol

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	plainReadTimeout  = 60 * time.Second
	plainPingInterval = 27 * time.Second
)

// wireFrame is the JSON frame exchanged over the plain websocket
// connection, mirroring the shape sustained-load-test's loadtest client
// uses for its subscribe/heartbeat traffic.
type wireFrame struct {
	Type string `json:"type"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Body string `json:"body,omitempty"`
}

// Plain is the protocol.Client adapter for the non-deniable messaging
// variant, transported over github.com/gorilla/websocket.
type Plain struct {
	accountID string
	logger    *zap.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	regular chan Envelope

	closeOnce sync.Once
}

// DialPlain connects to the messaging service and starts the background
// read pump. buffer is the size of the lossy regular-channel buffer.
func DialPlain(ctx context.Context, address, accountID string, buffer int, logger *zap.Logger) (*Plain, error) {
	u := url.URL{Scheme: "ws", Host: address, Path: "/ws"}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
			return d.DialContext(ctx, network, addr)
		},
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial plain websocket: %w", err)
	}

	p := &Plain{
		accountID: accountID,
		logger:    logger,
		conn:      conn,
		regular:   make(chan Envelope, buffer),
	}

	conn.SetReadDeadline(time.Now().Add(plainReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(plainReadTimeout))
		return nil
	})

	go p.readPump()
	go p.pingPump()

	return p, nil
}

func (p *Plain) AccountID() string { return p.accountID }
func (p *Plain) IsDeniable() bool  { return false }

func (p *Plain) SubscribeRegular() <-chan Envelope { return p.regular }

func (p *Plain) SubscribeDeniable() (<-chan Envelope, bool) { return nil, false }

func (p *Plain) SendRegular(ctx context.Context, accountID string, payload []byte) error {
	return p.send(accountID, payload)
}

// SendCovert falls back transparently to SendRegular per spec.md §4.3.
func (p *Plain) SendCovert(ctx context.Context, accountID string, payload []byte) error {
	return p.send(accountID, payload)
}

func (p *Plain) send(accountID string, payload []byte) error {
	frame := wireFrame{Type: "message", From: p.accountID, To: accountID, Body: base64.StdEncoding.EncodeToString(payload)}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(frame)
}

// ProcessInbox is a no-op for the plain adapter: reception happens on the
// background read pump, so there is nothing left to flush between ticks.
func (p *Plain) ProcessInbox(ctx context.Context) error { return nil }

func (p *Plain) Disconnect() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.regular)
		err = p.conn.Close()
	})
	return err
}

func (p *Plain) readPump() {
	for {
		var frame wireFrame
		if err := p.conn.ReadJSON(&frame); err != nil {
			if p.logger != nil {
				p.logger.Debug("plain read pump stopped", zap.Error(err))
			}
			return
		}
		if frame.Type != "message" {
			continue
		}
		body, err := base64.StdEncoding.DecodeString(frame.Body)
		if err != nil {
			continue
		}
		env := Envelope{
			SourceAccountID:     frame.From,
			ContentBytes:        body,
			TimestampUnixMillis: time.Now().UnixMilli(),
		}
		select {
		case p.regular <- env:
		default:
			// Lossy: drop the oldest queued envelope to make room, per
			// spec.md §4.3 ("multi-producer, lossy broadcast receiver").
			select {
			case <-p.regular:
			default:
			}
			select {
			case p.regular <- env:
			default:
			}
		}
	}
}

func (p *Plain) pingPump() {
	ticker := time.NewTicker(plainPingInterval)
	defer ticker.Stop()
	for range ticker.C {
		p.writeMu.Lock()
		err := p.conn.WriteMessage(websocket.PingMessage, nil)
		p.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
