// Package hub is the connection registry and router. A single actor
// goroutine owns the connection and subscription maps; everything else
// talks to it through commands, so no map is ever touched concurrently.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/market"
	"github.com/rahulbarman04/india-trading-analysis-platform/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	reapInterval   = 1 * time.Minute
)

// sender abstracts the per-connection write side.
type sender interface {
	trySend(msg []byte) bool
	stop()
	stopGraceful(reason string)
}

// client is the actor-owned state for one viewer connection. Its
// interests set and the hub's symbol index always mirror each other.
type client struct {
	send         sender
	interests    map[string]struct{}
	lastActivity time.Time
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type attachCmd struct {
	baseHubCmd
	id   uuid.UUID
	send sender
}

type detachCmd struct {
	baseHubCmd
	id     uuid.UUID
	reason string
}

type subscribeCmd struct {
	baseHubCmd
	id      uuid.UUID
	symbols []string
}

type unsubscribeCmd struct {
	baseHubCmd
	id      uuid.UUID
	symbols []string
}

type snapshotCmd struct {
	baseHubCmd
	id uuid.UUID
}

type deliverCmd struct {
	baseHubCmd
	id       uuid.UUID
	messages []outbound
}

type routeCmd struct {
	baseHubCmd
	record domain.AggregatedRecord
}

type activityCmd struct {
	baseHubCmd
	id uuid.UUID
}

type countCmd struct {
	baseHubCmd
	reply chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub routes aggregated records to the viewers subscribed to each
// symbol and owns the connection lifecycle (heartbeats, idle reaping,
// slow-client eviction).
type Hub struct {
	cmdCh     chan hubCmd
	clock     clockwork.Clock
	logger    *slog.Logger
	snapshots domain.SnapshotSource

	heartbeatInterval time.Duration
	idleTimeout       time.Duration

	conns map[uuid.UUID]*client
	index map[string]map[uuid.UUID]struct{}

	done chan struct{}
}

// New creates the hub and starts its actor goroutine.
func New(snapshots domain.SnapshotSource, clock clockwork.Clock, logger *slog.Logger, heartbeatInterval, idleTimeout time.Duration) *Hub {
	h := &Hub{
		cmdCh:             make(chan hubCmd, 256),
		clock:             clock,
		logger:            logger,
		snapshots:         snapshots,
		heartbeatInterval: heartbeatInterval,
		idleTimeout:       idleTimeout,
		conns:             make(map[uuid.UUID]*client),
		index:             make(map[string]map[uuid.UUID]struct{}),
		done:              make(chan struct{}),
	}
	go h.run()
	return h
}

// Attach registers a WebSocket connection and returns its assigned id.
// The viewer immediately receives a connection-established event.
func (h *Hub) Attach(conn *websocket.Conn) uuid.UUID {
	id := uuid.New()
	cw := newClientWriter(conn, h.clock, func() {
		h.cmdCh <- activityCmd{id: id}
	})
	return h.attachSender(id, cw)
}

func (h *Hub) attachSender(id uuid.UUID, send sender) uuid.UUID {
	h.cmdCh <- attachCmd{id: id, send: send}

	welcome, err := json.Marshal(connectionEstablishedEvent{
		Event:             EventConnectionEstablished,
		ClientID:          id.String(),
		AvailableChannels: availableChannels,
	})
	if err == nil {
		h.cmdCh <- deliverCmd{id: id, messages: []outbound{{name: EventConnectionEstablished, data: welcome}}}
	}
	return id
}

// Detach removes a connection and closes its writer.
func (h *Hub) Detach(id uuid.UUID) {
	h.cmdCh <- detachCmd{id: id, reason: "connection closed"}
}

// HandleMessage processes one inbound frame from a viewer. Malformed or
// unknown messages are ignored so a buggy client cannot take down its
// connection.
func (h *Hub) HandleMessage(id uuid.UUID, data []byte) {
	h.cmdCh <- activityCmd{id: id}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Event {
	case actionSubscribe:
		symbols := normalizeSymbols(msg.Symbols)
		if len(symbols) == 0 {
			h.deliverError(id, "subscribe requires at least one symbol")
			return
		}
		h.cmdCh <- subscribeCmd{id: id, symbols: symbols}
	case actionUnsubscribe:
		symbols := normalizeSymbols(msg.Symbols)
		if len(symbols) == 0 {
			h.deliverError(id, "unsubscribe requires at least one symbol")
			return
		}
		h.cmdCh <- unsubscribeCmd{id: id, symbols: symbols}
	case actionRequestInitialData:
		h.cmdCh <- snapshotCmd{id: id}
	}
}

func (h *Hub) deliverError(id uuid.UUID, message string) {
	data, err := json.Marshal(errorEvent{Event: EventError, Message: message})
	if err != nil {
		return
	}
	h.cmdCh <- deliverCmd{id: id, messages: []outbound{{name: EventError, data: data}}}
}

// Route fans an aggregated record out to every viewer subscribed to its
// symbol.
func (h *Hub) Route(record domain.AggregatedRecord) {
	h.cmdCh <- routeCmd{record: record}
}

// Count returns the number of registered connections, or -1 if the hub
// is unresponsive.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	h.cmdCh <- countCmd{reply: reply}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-timer.Chan():
		h.logger.Warn("hub count timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all viewer connections. Blocks until
// the actor goroutine has exited or the timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		h.logger.Info("hub stopped gracefully")
	case <-timer.Chan():
		h.logger.Warn("hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = market.Normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("hub panic recovered", "panic", r)
			h.closeAll("internal error")
		}
	}()

	heartbeat := h.clock.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()
	reaper := h.clock.NewTicker(reapInterval)
	defer reaper.Stop()
	defer close(h.done)

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case attachCmd:
				h.handleAttach(c)
			case detachCmd:
				h.handleDetach(c.id, c.reason)
			case subscribeCmd:
				h.handleSubscribe(c)
			case unsubscribeCmd:
				h.handleUnsubscribe(c)
			case snapshotCmd:
				h.pushSnapshots(c.id, h.interestsOf(c.id))
			case deliverCmd:
				h.handleDeliver(c)
			case routeCmd:
				h.handleRoute(c.record)
			case activityCmd:
				if cl, ok := h.conns[c.id]; ok {
					cl.lastActivity = h.clock.Now()
				}
			case countCmd:
				c.reply <- len(h.conns)
			case stopCmd:
				h.closeAll("server shutting down")
				return
			default:
				h.logger.Warn("hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-heartbeat.Chan():
			h.handleHeartbeat()
		case <-reaper.Chan():
			h.reapIdle()
		}
	}
}

func (h *Hub) handleAttach(c attachCmd) {
	h.conns[c.id] = &client{
		send:         c.send,
		interests:    make(map[string]struct{}),
		lastActivity: h.clock.Now(),
	}
	metrics.HubConnectionsCurrent.Set(float64(len(h.conns)))
	h.logger.Debug("viewer attached", "client_id", c.id.String(), "total_connections", len(h.conns))
}

func (h *Hub) handleDetach(id uuid.UUID, reason string) {
	cl, ok := h.conns[id]
	if !ok {
		return
	}

	for symbol := range cl.interests {
		h.dropFromIndex(symbol, id)
	}
	delete(h.conns, id)

	go cl.send.stopGraceful(reason)

	metrics.HubConnectionsCurrent.Set(float64(len(h.conns)))
	metrics.HubSubscriptionsCurrent.Sub(float64(len(cl.interests)))
	h.logger.Debug("viewer detached", "client_id", id.String(), "reason", reason, "total_connections", len(h.conns))
}

func (h *Hub) handleSubscribe(c subscribeCmd) {
	cl, ok := h.conns[c.id]
	if !ok {
		return
	}

	added := make([]string, 0, len(c.symbols))
	for _, symbol := range c.symbols {
		if _, exists := cl.interests[symbol]; exists {
			continue
		}
		cl.interests[symbol] = struct{}{}
		if h.index[symbol] == nil {
			h.index[symbol] = make(map[uuid.UUID]struct{})
		}
		h.index[symbol][c.id] = struct{}{}
		h.snapshots.Track(symbol)
		added = append(added, symbol)
	}
	metrics.HubSubscriptionsCurrent.Add(float64(len(added)))

	h.sendEvent(c.id, cl, subscriptionEvent{Event: EventSubscriptionConfirmed, Symbols: c.symbols})
	h.pushSnapshots(c.id, added)
}

func (h *Hub) handleUnsubscribe(c unsubscribeCmd) {
	cl, ok := h.conns[c.id]
	if !ok {
		return
	}

	removed := 0
	for _, symbol := range c.symbols {
		if _, exists := cl.interests[symbol]; !exists {
			continue
		}
		delete(cl.interests, symbol)
		h.dropFromIndex(symbol, c.id)
		removed++
	}
	metrics.HubSubscriptionsCurrent.Sub(float64(removed))

	h.sendEvent(c.id, cl, subscriptionEvent{Event: EventUnsubscriptionConfirmed, Symbols: c.symbols})
}

// pushSnapshots fetches the latest record for each symbol off the actor
// goroutine and delivers the resulting events back through a command.
func (h *Hub) pushSnapshots(id uuid.UUID, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		var messages []outbound
		for _, symbol := range symbols {
			record, err := h.snapshots.GetLatest(ctx, symbol)
			if err != nil {
				h.logger.Debug("snapshot fetch failed", "symbol", symbol, "error", err)
				continue
			}
			messages = append(messages, recordEvents(*record)...)
		}
		if len(messages) > 0 {
			h.cmdCh <- deliverCmd{id: id, messages: messages}
		}
	}()
}

func (h *Hub) handleDeliver(c deliverCmd) {
	cl, ok := h.conns[c.id]
	if !ok {
		return
	}
	for _, msg := range c.messages {
		if !cl.send.trySend(msg.data) {
			h.evictSlow(c.id)
			return
		}
		metrics.EventsRouted.WithLabelValues(msg.name).Inc()
	}
}

func (h *Hub) handleRoute(record domain.AggregatedRecord) {
	subscribers := h.index[record.Symbol]
	if len(subscribers) == 0 {
		return
	}

	events := recordEvents(record)
	if len(events) == 0 {
		return
	}

	var slow []uuid.UUID
	for id := range subscribers {
		cl := h.conns[id]
		for _, msg := range events {
			if !cl.send.trySend(msg.data) {
				slow = append(slow, id)
				break
			}
			metrics.EventsRouted.WithLabelValues(msg.name).Inc()
		}
	}

	for _, id := range slow {
		h.evictSlow(id)
	}
}

func (h *Hub) handleHeartbeat() {
	msg, err := json.Marshal(heartbeatEvent{
		Event:       EventHeartbeat,
		Timestamp:   h.clock.Now(),
		Connections: len(h.conns),
	})
	if err != nil {
		return
	}

	var slow []uuid.UUID
	for id, cl := range h.conns {
		if !cl.send.trySend(msg) {
			slow = append(slow, id)
		}
	}
	for _, id := range slow {
		h.evictSlow(id)
	}

	metrics.HeartbeatsSent.Inc()
}

func (h *Hub) reapIdle() {
	now := h.clock.Now()
	var idle []uuid.UUID
	for id, cl := range h.conns {
		if now.Sub(cl.lastActivity) >= h.idleTimeout {
			idle = append(idle, id)
		}
	}
	for _, id := range idle {
		metrics.IdleDisconnects.Inc()
		h.logger.Info("disconnecting idle viewer", "client_id", id.String())
		h.handleDetach(id, "idle timeout")
	}
}

func (h *Hub) evictSlow(id uuid.UUID) {
	metrics.SlowClientsEvicted.Inc()
	h.logger.Warn("disconnecting slow viewer", "client_id", id.String())
	h.handleDetach(id, "send buffer full")
}

func (h *Hub) sendEvent(id uuid.UUID, cl *client, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if !cl.send.trySend(data) {
		h.evictSlow(id)
	}
}

func (h *Hub) dropFromIndex(symbol string, id uuid.UUID) {
	if set, ok := h.index[symbol]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(h.index, symbol)
		}
	}
}

func (h *Hub) interestsOf(id uuid.UUID) []string {
	cl, ok := h.conns[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cl.interests))
	for symbol := range cl.interests {
		out = append(out, symbol)
	}
	return out
}

func (h *Hub) closeAll(reason string) {
	for id, cl := range h.conns {
		go cl.send.stopGraceful(reason)
		delete(h.conns, id)
	}
	h.index = make(map[string]map[uuid.UUID]struct{})
	metrics.HubConnectionsCurrent.Set(0)
	metrics.HubSubscriptionsCurrent.Set(0)
}
