// bus.go
package bus

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens, usually strings and ints.
// In subscriptions "+" matches one level and a trailing "#" matches zero or
// more levels.
type Topic []any

const (
	wildOne = "+"
	wildAll = "#"
)

// T builds a topic. It panics on a token that cannot be used as a map key.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, bool:
		default:
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

var ErrNoReply = errors.New("no reply")

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver never blocks; the oldest queued message is dropped when full.
func (s *Subscription) deliver(m *Message) {
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu       sync.Mutex
	subs     *node // subscription patterns
	retained *node // retained messages by concrete topic
	qLen     int
	replySeq atomic.Uint32
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		subs:     &node{},
		retained: &node{},
		qLen:     queueLen,
	}
}

// NewMessage builds a message; it does not publish it.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	collectRetained(b.retained, sub.topic, sub.deliver)
}

// collectRetained walks the retained trie and calls fn for every retained
// message whose topic matches pattern.
func collectRetained(n *node, pattern Topic, fn func(*Message)) {
	if n == nil {
		return
	}
	if len(pattern) == 0 {
		if n.retained != nil {
			fn(n.retained)
		}
		return
	}
	switch pattern[0] {
	case wildAll:
		var all func(*node)
		all = func(x *node) {
			if x.retained != nil {
				fn(x.retained)
			}
			for _, c := range x.children {
				all(c)
			}
		}
		all(n)
	case wildOne:
		for _, c := range n.children {
			collectRetained(c, pattern[1:], fn)
		}
	default:
		collectRetained(n.children[pattern[0]], pattern[1:], fn)
	}
}

// matchSubs calls fn for every subscription whose pattern matches topic.
func matchSubs(n *node, topic Topic, fn func(*Subscription)) {
	if n == nil {
		return
	}
	if c := n.children[wildAll]; c != nil {
		for _, s := range c.subs {
			fn(s)
		}
	}
	if len(topic) == 0 {
		for _, s := range n.subs {
			fn(s)
		}
		return
	}
	matchSubs(n.children[topic[0]], topic[1:], fn)
	if topic[0] != wildOne {
		matchSubs(n.children[wildOne], topic[1:], fn)
	}
}

// Publish delivers a message to all matching subscribers and updates the
// retained store. A retained message with a nil payload clears the topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		if msg.Payload == nil {
			b.clearRetained(msg.Topic)
		} else {
			n := b.retained
			for _, tok := range msg.Topic {
				n = n.child(tok, true)
			}
			n.retained = msg
		}
	}
	matchSubs(b.subs, msg.Topic, func(s *Subscription) { s.deliver(msg) })
}

func (b *Bus) clearRetained(topic Topic) {
	n := b.retained
	stack := make([]*node, 0, len(topic))
	for _, tok := range topic {
		stack = append(stack, n)
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	n.retained = nil
	prune(stack, topic)
}

// prune removes empty nodes along topic, deepest first.
func prune(stack []*node, topic Topic) {
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		c := parent.children[topic[i]]
		if len(c.subs) != 0 || len(c.children) != 0 || c.retained != nil {
			return
		}
		delete(parent.children, topic[i])
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	stack := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		stack = append(stack, n)
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	prune(stack, sub.topic)
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection. Matching
// retained messages are queued immediately.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection and closes its
// channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions of the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// Reply publishes payload to the requester's ReplyTo topic. Requests without
// one are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if req == nil || len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}

// Request assigns req a private reply topic, subscribes to it and publishes
// req. The caller owns the returned subscription.
func (c *Connection) Request(req *Message) *Subscription {
	seq := c.bus.replySeq.Add(1)
	req.ReplyTo = Topic{"_reply", c.id + "/" + strconv.FormatUint(uint64(seq), 10)}
	sub := c.Subscribe(req.ReplyTo)
	c.Publish(req)
	return sub
}

// RequestWait sends req and waits for the first reply or ctx.
func (c *Connection) RequestWait(ctx context.Context, req *Message) (*Message, error) {
	sub := c.Request(req)
	defer c.Unsubscribe(sub)
	select {
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, ErrNoReply
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
