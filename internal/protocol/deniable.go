package protocol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// deniableFrame is the JSON payload exchanged over the deniable transport.
// Covert set distinguishes the denim channel from regular traffic at the
// application layer; the two are carried over the same wire framing and
// frame shape. The flag itself is sent as plain JSON, so a reader of the
// frames can tell covert from regular traffic.
type deniableFrame struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Body   string `json:"body"`
	Covert bool   `json:"covert"`
}

// Deniable is the protocol.Client adapter for the deniable messaging
// variant, transported over github.com/gobwas/ws.
type Deniable struct {
	accountID string
	logger    *zap.Logger

	conn    net.Conn
	reader  *wsutil.Reader
	writeMu sync.Mutex

	regular chan Envelope
	covert  chan Envelope

	closeOnce sync.Once
}

// DialDeniable connects to the messaging service's denim endpoint and
// starts the background read pump.
func DialDeniable(ctx context.Context, address, accountID string, buffer int, logger *zap.Logger) (*Deniable, error) {
	u := fmt.Sprintf("ws://%s/denim", address)

	conn, br, _, err := ws.Dial(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("dial deniable websocket: %w", err)
	}

	var reader *wsutil.Reader
	if br != nil {
		reader = wsutil.NewReader(br, ws.StateClientSide)
	} else {
		reader = wsutil.NewReader(conn, ws.StateClientSide)
	}

	d := &Deniable{
		accountID: accountID,
		logger:    logger,
		conn:      conn,
		reader:    reader,
		regular:   make(chan Envelope, buffer),
		covert:    make(chan Envelope, buffer),
	}

	go d.readPump()

	return d, nil
}

func (d *Deniable) AccountID() string { return d.accountID }
func (d *Deniable) IsDeniable() bool  { return true }

func (d *Deniable) SubscribeRegular() <-chan Envelope { return d.regular }

func (d *Deniable) SubscribeDeniable() (<-chan Envelope, bool) { return d.covert, true }

func (d *Deniable) SendRegular(ctx context.Context, accountID string, payload []byte) error {
	return d.send(accountID, payload, false)
}

func (d *Deniable) SendCovert(ctx context.Context, accountID string, payload []byte) error {
	return d.send(accountID, payload, true)
}

func (d *Deniable) send(accountID string, payload []byte, covert bool) error {
	frame := deniableFrame{
		From:   d.accountID,
		To:     accountID,
		Body:   base64.StdEncoding.EncodeToString(payload),
		Covert: covert,
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal deniable frame: %w", err)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return wsutil.WriteClientMessage(d.conn, ws.OpText, raw)
}

// ProcessInbox is a no-op: reception happens on the background read pump.
func (d *Deniable) ProcessInbox(ctx context.Context) error { return nil }

func (d *Deniable) Disconnect() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.regular)
		close(d.covert)
		err = d.conn.Close()
	})
	return err
}

func (d *Deniable) readPump() {
	for {
		head, err := d.reader.NextFrame()
		if err != nil {
			if d.logger != nil {
				d.logger.Debug("deniable read pump stopped", zap.Error(err))
			}
			return
		}

		switch head.OpCode {
		case ws.OpClose:
			return
		case ws.OpPing:
			d.writeMu.Lock()
			_ = wsutil.WriteClientMessage(d.conn, ws.OpPong, nil)
			d.writeMu.Unlock()
			continue
		case ws.OpText, ws.OpBinary:
			payload := make([]byte, head.Length)
			if _, err := io.ReadFull(d.reader, payload); err != nil {
				return
			}
			d.deliver(payload)
		default:
			_, _ = io.CopyN(io.Discard, d.reader, int64(head.Length))
		}
	}
}

func (d *Deniable) deliver(payload []byte) {
	var frame deniableFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return
	}
	body, err := base64.StdEncoding.DecodeString(frame.Body)
	if err != nil {
		return
	}

	env := Envelope{
		SourceAccountID:     frame.From,
		ContentBytes:        body,
		TimestampUnixMillis: time.Now().UnixMilli(),
	}

	dest := d.regular
	if frame.Covert {
		dest = d.covert
	}

	select {
	case dest <- env:
	default:
		// Lossy: drop the oldest queued envelope to make room.
		select {
		case <-dest:
		default:
		}
		select {
		case dest <- env:
		default:
		}
	}
}
