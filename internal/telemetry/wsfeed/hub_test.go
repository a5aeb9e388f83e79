package wsfeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubSubscribeRoutesEventsOnlyToSubscribedClients(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	a := &Client{hub: hub, id: "a", send: make(chan *Event, 4), subs: newSubscriptions()}
	b := &Client{hub: hub, id: "b", send: make(chan *Event, 4), subs: newSubscriptions()}
	hub.register <- a
	hub.register <- b

	hub.Subscribe(a, "run-1")

	hub.Broadcast("run-1", NewEvent(EventTelemetry, "run-1"))

	select {
	case ev := <-a.send:
		assert.Equal(t, "run-1", ev.RunID)
	case <-time.After(time.Second):
		t.Fatal("subscribed client should have received the event")
	}

	select {
	case <-b.send:
		t.Fatal("unsubscribed client should not have received the event")
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	a := &Client{hub: hub, id: "a", send: make(chan *Event, 4), subs: newSubscriptions()}
	hub.register <- a
	hub.Subscribe(a, "run-1")
	hub.Unsubscribe(a, "run-1")

	hub.Broadcast("run-1", NewEvent(EventTelemetry, "run-1"))

	select {
	case <-a.send:
		t.Fatal("event should not be delivered after unsubscribe")
	default:
	}
}

func TestClientCountReflectsRegisteredClients(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	a := &Client{hub: hub, id: "a", send: make(chan *Event, 4), subs: newSubscriptions()}
	hub.register <- a

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}
