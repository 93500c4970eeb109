package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

type EventKind string

const (
	EventOrderCreated   EventKind = "order_created"
	EventOrderCompleted EventKind = "order_completed"
	EventOrderCancelled EventKind = "order_cancelled"
	EventOrderRefunded  EventKind = "order_refunded"
	EventOrderUnpaid    EventKind = "order_unpaid"
)

type Event struct {
	Kind      EventKind    `json:"kind"`
	OrderID   string       `json:"order_id"`
	Order     models.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher is the outbound transport, satisfied by the kafka producer.
type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

// Dispatcher enqueues order events to a worker goroutine so that a committed
// transition never blocks on, or fails because of, delivery.
type Dispatcher struct {
	publisher Publisher
	topic     string
	logger    *logger.Logger
	events    chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewDispatcher(publisher Publisher, topic string, bufferSize int, log *logger.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 128
	}
	d := &Dispatcher{
		publisher: publisher,
		topic:     topic,
		logger:    log,
		events:    make(chan Event, bufferSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify is fire-and-forget. A full queue drops the event with a warning
// rather than stalling the caller.
func (d *Dispatcher) Notify(kind EventKind, order models.Order) {
	event := Event{
		Kind:      kind,
		OrderID:   order.OrderID,
		Order:     order,
		Timestamp: time.Now(),
	}
	select {
	case d.events <- event:
	default:
		d.logger.Warn("NOTIFY", fmt.Sprintf("event queue full, dropping %s for order %s", kind, order.OrderID))
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.events {
		value, err := json.Marshal(event)
		if err != nil {
			d.logger.Error("NOTIFY", fmt.Sprintf("failed to marshal %s event: %v", event.Kind, err))
			continue
		}
		if err := d.publisher.Publish(d.topic, event.OrderID, value); err != nil {
			d.logger.Error("NOTIFY", fmt.Sprintf("failed to publish %s for order %s: %v", event.Kind, event.OrderID, err))
			continue
		}
		d.logger.LogKafka("publish", d.topic, fmt.Sprintf("%s order %s", event.Kind, event.OrderID))
	}
}

// Close drains pending events and stops the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.events)
	})
	d.wg.Wait()
}
