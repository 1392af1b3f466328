package transport

import "sync"

// subscriberBuffer is how many undelivered messages a slow subscriber may
// accumulate before Publish starts dropping for it.
const subscriberBuffer = 64

// Message is one value delivered to a Fan subscriber.
type Message struct {
	Topic   string
	Origin  any
	Payload any
}

// Subscriber is a single listener registered on a Fan.
type Subscriber struct {
	C     chan Message
	topic string
}

// Fan is a one-to-many broadcast point: every Publish on a topic reaches
// every live Subscriber registered for that topic. A slow subscriber never
// blocks a publish; it simply misses messages once its buffer fills. This
// is the same shape as a production event broker's fan-out to many
// independent listeners, generalized here to carry an arbitrary topic and
// origin tag instead of a single global channel.
type Fan struct {
	mu   sync.RWMutex
	subs map[*Subscriber]bool
}

// NewFan returns an empty Fan.
func NewFan() *Fan {
	return &Fan{subs: make(map[*Subscriber]bool)}
}

// Subscribe registers a new listener for topic.
func (f *Fan) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{C: make(chan Message, subscriberBuffer), topic: topic}
	f.mu.Lock()
	f.subs[sub] = true
	f.mu.Unlock()
	return sub
}

// Unsubscribe removes sub, closing its channel. Callers must stop reading
// from sub.C once Unsubscribe returns.
func (f *Fan) Unsubscribe(sub *Subscriber) {
	f.mu.Lock()
	if f.subs[sub] {
		delete(f.subs, sub)
		close(sub.C)
	}
	f.mu.Unlock()
}

// Publish delivers payload to every subscriber registered for topic.
// Delivery is non-blocking per subscriber: a subscriber whose buffer is
// full is skipped rather than stalling the publisher.
func (f *Fan) Publish(topic string, origin, payload any) {
	msg := Message{Topic: topic, Origin: origin, Payload: payload}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.C <- msg:
		default:
		}
	}
}

// SubscriberCount returns the number of listeners currently registered for
// topic.
func (f *Fan) SubscriberCount(topic string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for sub := range f.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}
