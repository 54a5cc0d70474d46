// Package event implements the in-process synchronous event bus: Tick,
// Bar, and BarCompletion events published to timeframe-derived topic
// strings ("1M", "5M", "15M", "1H", "4H", "D1") with a wildcard topic "*",
// and per-subscriber panic recovery so one bad subscriber cannot take down
// publication. Symbol scoping is a filtering concern: subscribers receive
// every event on their topic and inspect Event.Symbol themselves.
package event

import (
	"fmt"
	"sync"

	"github.com/ashgroveq/mtfengine/internal/models"
	"github.com/ashgroveq/mtfengine/pkg/logger"
)

// Kind identifies the category of an Event.
type Kind int

const (
	KindTick Kind = iota
	KindBar
	KindBarCompletion
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindBar:
		return "bar"
	case KindBarCompletion:
		return "bar_completion"
	default:
		return "unknown"
	}
}

// BarKind distinguishes what happened to the bar a KindBar event carries.
type BarKind int

const (
	BarOpened BarKind = iota
	BarClosed
	BarUpdated
)

// Event is the envelope dispatched to subscribers. Exactly one of Tick/Bar
// is populated, matching Kind. Sequence increases monotonically per bus so
// subscribers can detect ordering across topics.
type Event struct {
	Kind     Kind
	BarKind  BarKind // meaningful only when Kind == KindBar
	Topic    string
	Symbol   string
	Sequence uint64
	Tick     *models.Tick
	Bar      *models.Bar
}

// WildcardTopic subscribes to every event regardless of topic.
const WildcardTopic = models.WildcardTopic

// Handler processes one Event. A Handler that panics is recovered and
// logged by the Bus; it does not interrupt delivery to other subscribers.
type Handler func(Event)

// Subscription is an opaque handle returned by Subscribe, passed to
// Unsubscribe to remove a handler.
type Subscription struct {
	id    uint64
	topic string
}

// Bus dispatches events to subscribers synchronously, topic subscribers
// before wildcard subscribers and each in subscription order, within the
// calling goroutine. Topics are the timeframe strings
// from Timeframe.Topic(); tick events carry no timeframe and are delivered
// to wildcard subscribers only.
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	nextSeq uint64
	subs    map[string]map[uint64]Handler
}

// NewBus builds an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers fn to receive events published to topic — one of the
// timeframe topic strings, or WildcardTopic for every event.
func (b *Bus) Subscribe(topic string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = fn
	return Subscription{id: id, topic: topic}
}

// SubscribeTimeframe registers fn for tf's topic string.
func (b *Bus) SubscribeTimeframe(tf models.Timeframe, fn Handler) Subscription {
	return b.Subscribe(tf.Topic(), fn)
}

// SubscribeAll registers fn on the wildcard topic.
func (b *Bus) SubscribeAll(fn Handler) Subscription {
	return b.Subscribe(WildcardTopic, fn)
}

// Unsubscribe removes a previously registered handler. A no-op if sub was
// already removed.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.topic], sub.id)
}

// SubscriberCount reports how many handlers are registered on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish dispatches evt to every subscriber of evt.Topic and then to every
// wildcard subscriber, each group in subscription ID order. Each handler invocation
// is wrapped with panic recovery so one broken subscriber cannot take down
// the publisher or starve the others.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	b.nextSeq++
	evt.Sequence = b.nextSeq
	handlers := b.collect(evt.Topic)
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(h, evt)
	}
}

func (b *Bus) collect(topic string) []Handler {
	type idHandler struct {
		id uint64
		h  Handler
	}
	var ordered []idHandler
	for id, h := range b.subs[topic] {
		ordered = append(ordered, idHandler{id, h})
	}
	split := len(ordered)
	if topic != WildcardTopic {
		for id, h := range b.subs[WildcardTopic] {
			ordered = append(ordered, idHandler{id, h})
		}
	}
	// Within each group (topic subscribers first, then wildcard), ordering
	// by subscription id keeps dispatch deterministic across runs for the
	// same subscription sequence.
	sortByID := func(s []idHandler) {
		for i := 1; i < len(s); i++ {
			for j := i; j > 0 && s[j-1].id > s[j].id; j-- {
				s[j-1], s[j] = s[j], s[j-1]
			}
		}
	}
	sortByID(ordered[:split])
	sortByID(ordered[split:])
	out := make([]Handler, len(ordered))
	for i, e := range ordered {
		out[i] = e.h
	}
	return out
}

func (b *Bus) dispatch(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in event subscriber",
				logger.String("topic", evt.Topic),
				logger.String("kind", evt.Kind.String()),
				logger.String("recovered", fmt.Sprintf("%v", r)),
			)
		}
	}()
	h(evt)
}

// PublishTick publishes a tick event. Ticks carry no timeframe, so they go
// to wildcard subscribers only.
func (b *Bus) PublishTick(tick models.Tick) {
	b.Publish(Event{Kind: KindTick, Topic: WildcardTopic, Symbol: tick.Symbol, Tick: &tick})
}

// PublishBar publishes a bar event (opened/updated/closed) to the bar's
// timeframe topic.
func (b *Bus) PublishBar(bar models.Bar, barKind BarKind) {
	b.Publish(Event{Kind: KindBar, BarKind: barKind, Topic: bar.Timeframe.Topic(), Symbol: bar.Symbol, Bar: &bar})
}

// PublishBarCompletion publishes a completion event to the bar's timeframe
// topic, distinct in Kind from PublishBar so subscribers can distinguish
// "bar updated" from "bar closed".
func (b *Bus) PublishBarCompletion(bar models.Bar) {
	b.Publish(Event{Kind: KindBarCompletion, Topic: bar.Timeframe.Topic(), Symbol: bar.Symbol, Bar: &bar})
}
