package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const topicTest Topic = 1

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	var got interface{}
	h.Subscribe(topicTest, func(ev Event) { got = ev.Data })

	h.Publish(topicTest, "payload")
	require.Equal(t, "payload", got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	calls := 0
	sub := h.Subscribe(topicTest, func(ev Event) { calls++ })

	h.Publish(topicTest, nil)
	sub.Unsubscribe()
	h.Publish(topicTest, nil)

	require.Equal(t, 1, calls)
	require.Equal(t, 0, h.SubscriberCount(topicTest))
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	h := NewHub()
	a, b := 0, 0
	h.Subscribe(topicTest, func(ev Event) { a++ })
	h.Subscribe(topicTest, func(ev Event) { b++ })

	h.Publish(topicTest, nil)
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}
