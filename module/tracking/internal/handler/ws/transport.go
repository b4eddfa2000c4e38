package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

// transport writes hub events as JSON text frames. The hub calls Send from a
// single writer goroutine; Close and WriteControl are safe alongside it.
type transport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newTransport(conn *websocket.Conn, writeTimeout time.Duration) *transport {
	return &transport{conn: conn, writeTimeout: writeTimeout}
}

func (t *transport) Send(ev domain.Event) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteJSON(ev)
}

func (t *transport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
