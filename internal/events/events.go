// Package events fans domain changes out to the realtime hub and, when a
// broker is configured, to the kot_events RabbitMQ exchange.
package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kiwari-pos/kot-api/internal/enum"
	"github.com/kiwari-pos/kot-api/internal/ws"
)

const (
	TypeKOTCreated   = "kot.created"
	TypeKOTUpdated   = "kot.updated"
	TypeKOTCancelled = "kot.cancelled"
	TypeTableUpdated = "table.updated"
	TypeBillSettled  = "bill.settled"
)

// rooms maps each event type to the stations that display it.
var rooms = map[string][]string{
	TypeKOTCreated:   {enum.RoomKitchen, enum.RoomFloor},
	TypeKOTUpdated:   {enum.RoomKitchen, enum.RoomFloor, enum.RoomBilling},
	TypeKOTCancelled: {enum.RoomKitchen, enum.RoomFloor},
	TypeTableUpdated: {enum.RoomFloor, enum.RoomBilling},
	TypeBillSettled:  {enum.RoomBilling, enum.RoomFloor},
}

// Event is one notification. Status, when set, is appended to the broker
// routing key (kot.updated.ready) so consumers can bind on a single status.
type Event struct {
	Type     string
	Status   string
	Priority string
	Payload  any
}

func (e Event) RoutingKey() string {
	if e.Status == "" {
		return e.Type
	}
	return e.Type + "." + e.Status
}

// Notifier is what the services depend on.
type Notifier interface {
	Notify(ctx context.Context, events ...Event)
}

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToRoom(room string, event ws.Event)
}

// Publisher is satisfied by *AMQPPublisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, priority uint8, body []byte) error
}

// Dispatcher delivers events to the hub and the optional publisher.
// Delivery failures are logged and never fail the caller's operation.
type Dispatcher struct {
	hub Broadcaster
	pub Publisher
}

// NewDispatcher returns a Dispatcher. pub may be nil.
func NewDispatcher(hub Broadcaster, pub Publisher) *Dispatcher {
	return &Dispatcher{hub: hub, pub: pub}
}

func (d *Dispatcher) Notify(ctx context.Context, events ...Event) {
	for _, ev := range events {
		body, err := json.Marshal(ev.Payload)
		if err != nil {
			log.Printf("ERROR: marshal %s event: %v", ev.Type, err)
			continue
		}

		if d.hub != nil {
			for _, room := range rooms[ev.Type] {
				d.hub.BroadcastToRoom(room, ws.Event{Type: ev.Type, Payload: body})
			}
		}

		if d.pub != nil {
			if err := d.pub.Publish(ctx, ev.RoutingKey(), MessagePriority(ev.Priority), body); err != nil {
				log.Printf("ERROR: publish %s: %v", ev.RoutingKey(), err)
			}
		}
	}
}

// MessagePriority maps a KOT priority onto an AMQP message priority.
func MessagePriority(p string) uint8 {
	switch p {
	case enum.PriorityHigh:
		return 9
	case enum.PriorityLow:
		return 1
	default:
		return 5
	}
}

// Discard drops every event. Used when no realtime delivery is wanted.
type Discard struct{}

func (Discard) Notify(context.Context, ...Event) {}
