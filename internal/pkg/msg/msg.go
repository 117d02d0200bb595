// Package msg carries pipeline events from the root system to its handlers.
package msg

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic classifies a message.
type Topic int

const (
	// Status messages report the progress of a run.
	Status Topic = iota
	// Result messages carry a finished run.
	Result
)

func (t Topic) String() string {
	switch t {
	case Status:
		return "status"
	case Result:
		return "result"
	default:
		return "unknown"
	}
}

// Publisher is an interface for objects that allow subscription to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is one published event.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// Report is the payload of Status messages. Error is set when the stage
// failed.
type Report struct {
	Run   uuid.UUID `json:"run" bson:"run"`
	Stage string    `json:"stage" bson:"stage"`
	Error string    `json:"error,omitempty" bson:"error,omitempty"`
	Time  time.Time `json:"time" bson:"time"`
}

const inboxSize = 50

// PubSub fans published messages out to every subscriber of the topic.
type PubSub struct {
	mux         sync.RWMutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	closed      bool
}

// NewPublisher returns a PubSub that sends as pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID is the sender of every published message.
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel on which the specified topic is broadcast
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, fmt.Errorf("publisher %v is closed", p.pid)
	}
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, ok := subs[pid]; ok {
		return nil, fmt.Errorf("%v is already subscribed to %v", pid, topic)
	}
	ch := make(chan Msg, inboxSize)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe pid from all topic broadcasts and close its channels.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish sends payload to every subscriber of topic. It blocks while a
// subscriber's inbox is full.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	if p.closed {
		return
	}
	m := New(p.pid, topic, payload)
	for _, ch := range p.subscribers[topic] {
		ch <- m
	}
}

// Close closes every subscription. Later publishes are dropped.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for topic, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(p.subscribers, topic)
	}
}
