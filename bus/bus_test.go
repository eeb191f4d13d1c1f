package bus

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

var (
	topicConfigHAL = Topic{"config", "hal"}
	topicHALState  = Topic{"hal", "state"}
)

func capTopic(id int, leaf string) Topic {
	return Topic{"hal", "capability", "spi_slave", id, leaf}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(topicConfigHAL)

	conn.Publish(conn.NewMessage(topicConfigHAL, "devices", false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "devices" {
			t.Errorf("expected payload 'devices', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(topicHALState, "ready", true))

	sub := conn.Subscribe(topicHALState)

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "ready" {
			t.Errorf("expected retained payload 'ready', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	sub := c.Subscribe(capTopic(0, "state"))

	for _, p := range []string{"down", "up", "degraded"} {
		c.Publish(c.NewMessage(capTopic(0, "state"), p, false))
	}
	got := drainPayloads(t, sub, 2)
	if got[0] != "up" || got[1] != "degraded" {
		t.Fatalf("got %v, want [up degraded]", got)
	}
	expectNoMessage(t, sub)
}

// -----------------------------------------------------------------------------
// Wildcards
// -----------------------------------------------------------------------------

func TestWildcard_SingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	s1 := c.Subscribe(Topic{"hal", "capability", "+", 0, "state"})
	s2 := c.Subscribe(Topic{"hal", "capability", "+", "+", "+"})
	s3 := c.Subscribe(Topic{"hal", "capability", "spi_slave", 0, "+"})
	sNo := c.Subscribe(Topic{"hal", "capability", "+", 0, "info"})

	c.Publish(b.NewMessage(capTopic(0, "state"), "m1", false))

	expectOneOf(t, s1, "m1")
	expectOneOf(t, s2, "m1")
	expectOneOf(t, s3, "m1")
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(Topic{"hal", "capability", "gpio", 1, "value"}, "m2", false))

	expectOneOf(t, s2, "m2")
	expectNoMessage(t, s1)
	expectNoMessage(t, s3)
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(Topic{"hal", "capability", "spi_slave", 0}, "m3", false))
	expectNoMessage(t, s1)
	expectNoMessage(t, s2)
	expectNoMessage(t, s3)
	expectNoMessage(t, sNo)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sHALHash := c.Subscribe(Topic{"hal", "#"})
	sHash := c.Subscribe(Topic{"#"})
	sCapHash := c.Subscribe(Topic{"hal", "capability", "#"})
	sHALExact := c.Subscribe(Topic{"hal"})

	c.Publish(b.NewMessage(Topic{"hal"}, "p1", false))
	expectOneOf(t, sHALHash, "p1")
	expectOneOf(t, sHash, "p1")
	expectOneOf(t, sHALExact, "p1")
	expectNoMessage(t, sCapHash)

	c.Publish(b.NewMessage(Topic{"hal", "capability"}, "p2", false))
	expectOneOf(t, sHALHash, "p2")
	expectOneOf(t, sHash, "p2")
	expectOneOf(t, sCapHash, "p2")
	expectNoMessage(t, sHALExact)

	c.Publish(b.NewMessage(capTopic(0, "info"), "p3", false))
	expectOneOf(t, sHALHash, "p3")
	expectOneOf(t, sHash, "p3")
	expectOneOf(t, sCapHash, "p3")
	expectNoMessage(t, sHALExact)
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(topicHALState, "r0", true))
	c.Publish(b.NewMessage(capTopic(0, "info"), "r1", true))
	c.Publish(b.NewMessage(capTopic(0, "state"), "r2", true))
	c.Publish(b.NewMessage(capTopic(1, "state"), "r3", true))

	sAll := c.Subscribe(Topic{"hal", "#"})
	assertUnorderedEqual(t, drainPayloads(t, sAll, 4), []string{"r0", "r1", "r2", "r3"})

	sStates := c.Subscribe(Topic{"hal", "capability", "spi_slave", "+", "state"})
	assertUnorderedEqual(t, drainPayloads(t, sStates, 2), []string{"r2", "r3"})

	sCap0 := c.Subscribe(Topic{"hal", "capability", "spi_slave", 0, "#"})
	assertUnorderedEqual(t, drainPayloads(t, sCap0, 2), []string{"r1", "r2"})
}

func TestWildcard_RetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(capTopic(0, "info"), "gone", true))
	c.Publish(b.NewMessage(capTopic(1, "info"), "other", true))

	c.Publish(b.NewMessage(capTopic(0, "info"), nil, true))

	s := c.Subscribe(Topic{"hal", "#"})
	got := drainPayloads(t, s, 1)

	if len(got) != 1 || got[0] != "other" {
		t.Fatalf("expected only 'other' after clear, got %v", got)
	}
}

func TestRetainedClearPrunesTrie(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(capTopic(0, "info"), "x", true))
	c.Publish(b.NewMessage(capTopic(0, "info"), nil, true))

	if len(b.retained.children) != 0 {
		t.Fatalf("retained trie not pruned: %v", b.retained.children)
	}

	// Clearing a topic that was never retained is a no-op.
	c.Publish(b.NewMessage(capTopic(7, "info"), nil, true))
	if len(b.retained.children) != 0 {
		t.Fatal("clear created nodes")
	}
}

func TestUnsubscribePrunesAndCloses(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(capTopic(0, "state"))
	c.Unsubscribe(sub)
	if _, ok := <-sub.Channel(); ok {
		t.Fatal("channel open after unsubscribe")
	}
	if len(b.subs.children) != 0 {
		t.Fatalf("subscription trie not pruned: %v", b.subs.children)
	}
	c.Unsubscribe(sub) // second call is ignored
}

func TestWildcard_NoMatchCases(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")

	s := c.Subscribe(Topic{"hal", "+", "state"})

	c.Publish(b.NewMessage(topicHALState, "x", false))
	expectNoMessage(t, s)

	c.Publish(b.NewMessage(Topic{"hal", "capability", "info"}, "y", false))
	expectNoMessage(t, s)
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

func TestRequestReply_RequestWait(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")
	respConn := b.NewConnection("responder")

	reqTopic := Topic{"hal", "capability", "spi_slave", 0, "control", "status"}
	respSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(respSub)

	go func() {
		if msg, ok := <-respSub.Channel(); ok {
			respConn.Reply(msg, "armed", false)
		}
	}()

	req := b.NewMessage(reqTopic, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	reply, err := reqConn.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error waiting for reply: %v", err)
	}
	if got, ok := reply.Payload.(string); !ok || got != "armed" {
		t.Fatalf("unexpected reply payload: %#v", reply.Payload)
	}
	if len(req.ReplyTo) == 0 {
		t.Fatal("request lacks ReplyTo after RequestWait")
	}
	if !topicsEqual(reply.Topic, req.ReplyTo) {
		t.Fatalf("reply topic %v != request ReplyTo %v", reply.Topic, req.ReplyTo)
	}
}

func TestRequestReply_Timeout(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")

	req := b.NewMessage(Topic{"hal", "capability", "spi_slave", 9, "control", "status"}, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := reqConn.RequestWait(ctx, req); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRequestReply_DisconnectGivesNoReply(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("heartbeat")
	respConn := b.NewConnection("hal")

	reqTopic := Topic{"hal", "capability", "spi_slave", 0, "control", "rearm"}
	respSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(respSub)

	// The request is published after its reply subscription exists, so
	// disconnecting here always closes the channel RequestWait is reading.
	go func() {
		if _, ok := <-respSub.Channel(); ok {
			reqConn.Disconnect()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := reqConn.RequestWait(ctx, b.NewMessage(reqTopic, nil, false)); !errors.Is(err, ErrNoReply) {
		t.Fatalf("err = %v, want ErrNoReply", err)
	}
}

func TestRequestReply_ManualSubscription(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")
	respConn := b.NewConnection("responder")

	reqTopic := capTopic(0, "control")
	reqSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(reqSub)

	reqMsg := b.NewMessage(reqTopic, nil, false)
	replySub := reqConn.Request(reqMsg)
	defer reqConn.Unsubscribe(replySub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if msg, ok := <-reqSub.Channel(); ok {
			respConn.Reply(msg, map[string]any{"sercom": 0}, false)
		}
	}()

	select {
	case got := <-replySub.Channel():
		m, ok := got.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected reply type: %#v", got.Payload)
		}
		if m["sercom"] != 0 {
			t.Fatalf("unexpected reply content: %#v", m)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for manual reply")
	}

	<-done
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func topicsEqual(a, b Topic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %q, want %q (got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}

func TestTopic_InvalidTokenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for non-comparable token, got none")
		}
	}()

	// []byte is not comparable, so T should panic
	_ = T([]byte{1, 2, 3})
}
