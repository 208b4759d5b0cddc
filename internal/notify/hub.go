// Package notify delivers flow progress to observers subscribed by flow
// identifier.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

// Observer receives messages for the flows it is subscribed to.
type Observer interface {
	Deliver(ctx context.Context, flowID string, msg Message) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, flowID string, msg Message) error

// Deliver implements Observer.
func (f ObserverFunc) Deliver(ctx context.Context, flowID string, msg Message) error {
	return f(ctx, flowID, msg)
}

// HubConfig configures hub behavior.
type HubConfig struct {
	// BufferSize is the queue length per subscription.
	// Default: 256
	BufferSize int

	// OnDrop is called when a subscription's queue is full and a message
	// is discarded for it.
	OnDrop func(flowID string, msg Message, subscriberID string)

	// OnError is called when an observer fails to take a message.
	OnError func(flowID string, msg Message, subscriberID string, err error)
}

// DefaultHubConfig provides reasonable defaults.
var DefaultHubConfig = HubConfig{
	BufferSize: 256,
}

// Hub fans messages out to the observers of a flow. Publish never blocks:
// each subscription has its own queue and delivery goroutine, so a slow
// observer only loses its own messages.
type Hub struct {
	config HubConfig

	mu        sync.RWMutex
	byFlow    map[string]map[string]*Subscription
	wildcards map[string]*Subscription

	nextID atomic.Int64
	closed atomic.Bool
}

// NewHub creates a hub.
func NewHub(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig.BufferSize
	}
	return &Hub{
		config:    config,
		byFlow:    make(map[string]map[string]*Subscription),
		wildcards: make(map[string]*Subscription),
	}
}

type delivery struct {
	flowID string
	msg    Message
}

// Subscription is one observer's registration.
type Subscription struct {
	id       string
	flowID   string
	observer Observer
	queue    chan delivery
	done     chan struct{}
	once     sync.Once
	hub      *Hub
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// FlowID returns the subscribed flow, or "" for a wildcard subscription.
func (s *Subscription) FlowID() string { return s.flowID }

// Subscribe registers obs for one flow. Returns nil after Close.
func (h *Hub) Subscribe(flowID string, obs Observer) *Subscription {
	return h.subscribe(flowID, obs)
}

// SubscribeAll registers obs for every flow.
func (h *Hub) SubscribeAll(obs Observer) *Subscription {
	return h.subscribe("", obs)
}

func (h *Hub) subscribe(flowID string, obs Observer) *Subscription {
	if h.closed.Load() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		id:       strconv.FormatInt(h.nextID.Add(1), 10),
		flowID:   flowID,
		observer: obs,
		queue:    make(chan delivery, h.config.BufferSize),
		done:     make(chan struct{}),
		hub:      h,
	}

	if flowID == "" {
		h.wildcards[sub.id] = sub
	} else {
		if h.byFlow[flowID] == nil {
			h.byFlow[flowID] = make(map[string]*Subscription)
		}
		h.byFlow[flowID][sub.id] = sub
	}

	go sub.process()
	return sub
}

// Unsubscribe removes sub. Messages still queued for it are discarded.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if sub.flowID == "" {
		delete(h.wildcards, sub.id)
	} else if subs, ok := h.byFlow[sub.flowID]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.byFlow, sub.flowID)
		}
	}
	h.mu.Unlock()

	sub.stop()
}

// Unsubscribe removes the subscription from its hub.
func (s *Subscription) Unsubscribe() {
	s.hub.Unsubscribe(s)
}

// Publish queues msg for every current observer of flowID. Observers that
// subscribe later never see it.
func (h *Hub) Publish(flowID string, msg Message) {
	if h.closed.Load() {
		return
	}

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.byFlow[flowID])+len(h.wildcards))
	for _, sub := range h.byFlow[flowID] {
		subs = append(subs, sub)
	}
	for _, sub := range h.wildcards {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- delivery{flowID: flowID, msg: msg}:
		default:
			if h.config.OnDrop != nil {
				h.config.OnDrop(flowID, msg, sub.id)
			} else {
				slog.Warn("notification dropped",
					slog.String("flow_id", flowID),
					slog.String("subscriber", sub.id),
					slog.String("type", string(msg.Type)))
			}
		}
	}
}

// Subscribers returns the number of observers subscribed to flowID,
// not counting wildcard subscriptions.
func (h *Hub) Subscribers(flowID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byFlow[flowID])
}

// Close stops every subscription. Later publishes are ignored.
func (h *Hub) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.mu.Lock()
	var subs []*Subscription
	for _, flow := range h.byFlow {
		for _, sub := range flow {
			subs = append(subs, sub)
		}
	}
	for _, sub := range h.wildcards {
		subs = append(subs, sub)
	}
	h.byFlow = make(map[string]map[string]*Subscription)
	h.wildcards = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) process() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	for {
		select {
		case d := <-s.queue:
			err := s.observer.Deliver(ctx, d.flowID, d.msg)
			if err != nil && s.hub.config.OnError != nil {
				s.hub.config.OnError(d.flowID, d.msg, s.id, err)
			}
		case <-s.done:
			return
		}
	}
}
