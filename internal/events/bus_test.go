package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(4, nil)

	ch, cancel := bus.Subscribe(TopicNewComment)
	defer cancel()

	bus.Publish(TopicNewComment, "hello")

	select {
	case ev := <-ch:
		if ev.Topic != TopicNewComment {
			t.Errorf("Topic = %q, want %q", ev.Topic, TopicNewComment)
		}
		if ev.Payload != "hello" {
			t.Errorf("Payload = %v", ev.Payload)
		}
		if ev.Time.IsZero() {
			t.Error("Time not set")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := NewBus(4, nil)

	comments, cancelC := bus.Subscribe(TopicNewComment)
	defer cancelC()
	posts, cancelP := bus.Subscribe(TopicBlogPostChanged)
	defer cancelP()

	bus.Publish(TopicBlogPostChanged, 1)

	select {
	case <-posts:
	case <-time.After(time.Second):
		t.Fatal("blog post subscriber got nothing")
	}

	select {
	case ev := <-comments:
		t.Errorf("comment subscriber received %v", ev)
	default:
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(4, nil)

	a, cancelA := bus.Subscribe(TopicPresenceJoin)
	defer cancelA()
	b, cancelB := bus.Subscribe(TopicPresenceJoin)
	defer cancelB()

	bus.Publish(TopicPresenceJoin, "user-1")

	for i, ch := range []<-chan Event{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus(2, nil)

	_, cancel := bus.Subscribe(TopicAnalyticsEvent)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Far more events than the buffer holds; overflow is dropped.
		for i := 0; i < 100; i++ {
			bus.Publish(TopicAnalyticsEvent, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus(4, nil)

	ch, cancel := bus.Subscribe(TopicConnectionOpen)
	cancel()
	cancel() // safe to call twice

	bus.Publish(TopicConnectionOpen, "conn-1")

	// The channel is closed on cancel; only the zero value can come out.
	if ev, ok := <-ch; ok {
		t.Errorf("received %v on cancelled subscription", ev)
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(4, nil)
	bus.Publish(TopicContactSubmission, "nobody listening")
}
