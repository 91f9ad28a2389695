package hub

import (
	"encoding/json"
	"time"

	"github.com/rahulbarman04/india-trading-analysis-platform/internal/domain"
)

// Outbound event names.
const (
	EventConnectionEstablished   = "connection-established"
	EventSubscriptionConfirmed   = "subscription-confirmed"
	EventUnsubscriptionConfirmed = "unsubscription-confirmed"
	EventMarketData              = "market-data"
	EventTechnicalUpdate         = "technical-update"
	EventSentimentUpdate         = "sentiment-update"
	EventHeartbeat               = "heartbeat"
	EventError                   = "error"
)

// Inbound event names.
const (
	actionSubscribe          = "subscribe"
	actionUnsubscribe        = "unsubscribe"
	actionRequestInitialData = "request-initial-data"
)

// clientMessage is the envelope viewers send. Anything that does not
// parse into this shape is ignored.
type clientMessage struct {
	Event   string   `json:"event"`
	Symbols []string `json:"symbols"`
}

type connectionEstablishedEvent struct {
	Event             string   `json:"event"`
	ClientID          string   `json:"clientId"`
	AvailableChannels []string `json:"availableChannels"`
}

type subscriptionEvent struct {
	Event   string   `json:"event"`
	Symbols []string `json:"symbols"`
}

type dataEvent struct {
	Event     string          `json:"event"`
	Symbol    string          `json:"symbol"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type heartbeatEvent struct {
	Event       string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	Connections int       `json:"connections"`
}

type errorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// availableChannels lists the event streams a viewer can receive.
var availableChannels = []string{EventMarketData, EventTechnicalUpdate, EventSentimentUpdate}

// outbound is a marshalled event tagged with its name for routing
// metrics.
type outbound struct {
	name string
	data []byte
}

// recordEvents expands an aggregated record into the per-facet events a
// subscribed viewer receives. Absent facets produce no event.
func recordEvents(record domain.AggregatedRecord) []outbound {
	var events []outbound

	if record.Market != nil {
		data, err := json.Marshal(record.Market)
		if err == nil {
			events = appendEvent(events, EventMarketData, dataEvent{
				Event:     EventMarketData,
				Symbol:    record.Symbol,
				Data:      data,
				Timestamp: record.Timestamp,
			})
		}
	}
	if len(record.Technical) > 0 {
		events = appendEvent(events, EventTechnicalUpdate, dataEvent{
			Event:     EventTechnicalUpdate,
			Symbol:    record.Symbol,
			Data:      record.Technical,
			Timestamp: record.Timestamp,
		})
	}
	if len(record.Sentiment) > 0 {
		events = appendEvent(events, EventSentimentUpdate, dataEvent{
			Event:     EventSentimentUpdate,
			Symbol:    record.Symbol,
			Data:      record.Sentiment,
			Timestamp: record.Timestamp,
		})
	}

	return events
}

func appendEvent(events []outbound, name string, event any) []outbound {
	data, err := json.Marshal(event)
	if err != nil {
		return events
	}
	return append(events, outbound{name: name, data: data})
}
