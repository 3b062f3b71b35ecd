package push

import (
	"time"

	"quarterload/util"
)

// Event is a notification event raised by a meter
type Event struct {
	Meter string
	Event string
}

// EventTemplate is the message definition for a single event type
type EventTemplate struct {
	Title, Msg string
}

// Sender implementations deliver rendered messages
type Sender interface {
	Send(title, msg string)
}

// Hub renders event messages against the parameter cache and fans them out
// to the configured senders
type Hub struct {
	log         *util.Logger
	definitions map[string]EventTemplate
	sender      []Sender
	cache       *util.Cache
}

// NewHub creates a push hub with event message definitions
func NewHub(definitions map[string]EventTemplate, cache *util.Cache) *Hub {
	return &Hub{
		log:         util.NewLogger("push"),
		definitions: definitions,
		cache:       cache,
	}
}

// Add appends a sender to the hub
func (h *Hub) Add(sender Sender) {
	h.sender = append(h.sender, sender)
}

// apply renders a message template against the cached parameters of the
// event's meter
func (h *Hub) apply(ev Event, tmpl string) (string, error) {
	attr := map[string]interface{}{
		"meter": ev.Meter,
	}

	for _, p := range h.cache.All() {
		if p.Meter == "" || p.Meter == ev.Meter {
			attr[p.Key] = p.Val
		}
	}

	return util.ReplaceFormatted(tmpl, attr)
}

func (h *Hub) send(ev Event) {
	definition, ok := h.definitions[ev.Event]
	if !ok {
		h.log.TRACE.Printf("no message definition for %s", ev.Event)
		return
	}

	// let the cache catch up with the event's parameters
	time.Sleep(100 * time.Millisecond)

	title, err := h.apply(ev, definition.Title)
	if err != nil {
		h.log.ERROR.Printf("invalid title template for %s: %v", ev.Event, err)
		return
	}

	msg, err := h.apply(ev, definition.Msg)
	if err != nil {
		h.log.ERROR.Printf("invalid message template for %s: %v", ev.Event, err)
		return
	}

	for _, sender := range h.sender {
		go sender.Send(title, msg)
	}
}

// Run listens for events and dispatches messages
func (h *Hub) Run(events <-chan Event) {
	for ev := range events {
		h.send(ev)
	}
}
