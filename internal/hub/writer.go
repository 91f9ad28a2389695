package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// clientWriter owns all writes to one WebSocket connection. Messages go
// through sendChannel so the hub never writes concurrently; the ping
// loop keeps the connection alive between data events.
type clientWriter struct {
	connection *websocket.Conn
	clock      clockwork.Clock
	sendChan   chan []byte
	doneChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	onPong     func()
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, onPong func()) *clientWriter {
	cw := &clientWriter{
		connection: connection,
		clock:      clock,
		sendChan:   make(chan []byte, messageBufferSize),
		doneChan:   make(chan struct{}),
		onPong:     onPong,
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendChan:
			if !ok {
				return
			}
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WSPingFailures.Inc()
				return
			}
		case <-cw.doneChan:
			return
		}
	}
}

// trySend queues a message without blocking. Returns false when the
// client's buffer is full, marking it as slow.
func (cw *clientWriter) trySend(msg []byte) bool {
	select {
	case cw.sendChan <- msg:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChan)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChan)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		if cw.onPong != nil {
			cw.onPong()
		}
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	deadline := cw.clock.Now().Add(writeDeadline)
	_ = cw.connection.SetWriteDeadline(deadline)
}

func (cw *clientWriter) updateReadDeadline() {
	deadline := cw.clock.Now().Add(pongDeadline)
	_ = cw.connection.SetReadDeadline(deadline)
}
