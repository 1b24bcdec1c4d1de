package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, commodityID uint) *Client {
	return &Client{
		Hub:           hub,
		UserID:        "user",
		CommodityID:   commodityID,
		Send:          make(chan []byte, 8),
		LastResetTime: time.Now(),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var e Event
		require.NoError(t, json.Unmarshal(msg, &e))
		return e
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Event{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RoomsAndAllCommodities(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	beras := newTestClient(hub, 1)
	cabai := newTestClient(hub, 2)
	all := newTestClient(hub, AllCommodities)

	hub.Register(beras)
	hub.Register(cabai)
	hub.Register(all)
	require.Eventually(t, func() bool {
		return hub.ClientCount(1) == 1 && hub.ClientCount(2) == 1 && hub.ClientCount(AllCommodities) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendToRoom(1, Event{Type: EventChanged, CommodityID: 1}))

	assert.Equal(t, uint(1), receive(t, beras).CommodityID)
	assert.Equal(t, uint(1), receive(t, all).CommodityID)
	assertNothing(t, cabai)
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(hub, 1)
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount(1) == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.ClientCount(1) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_HandleClientMessage(t *testing.T) {
	hub := NewHub()

	var refreshed []uint
	hub.SetRefreshHandler(func(client *Client) {
		refreshed = append(refreshed, client.CommodityID)
	})

	c := newTestClient(hub, 4)
	hub.HandleClientMessage(c, []byte(`{"type":"refresh"}`))
	hub.HandleClientMessage(c, []byte(`{"type":"unknown"}`))
	hub.HandleClientMessage(c, []byte(`not json`))
	assert.Equal(t, []uint{4}, refreshed)

	// rate limit
	for i := 0; i < maxMessagesPerSecond*2; i++ {
		hub.HandleClientMessage(c, []byte(`{"type":"refresh"}`))
	}
	assert.LessOrEqual(t, len(refreshed), maxMessagesPerSecond)
}

func TestClient_CountMessage(t *testing.T) {
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	c := &Client{LastResetTime: start}

	for i := 1; i <= 3; i++ {
		assert.Equal(t, i, c.countMessage(start.Add(100*time.Millisecond)))
	}

	// a new window resets the counter
	assert.Equal(t, 1, c.countMessage(start.Add(time.Second)))
}

func TestHub_RoomEmptyHandler(t *testing.T) {
	hub := NewHub()
	emptied := make(chan uint, 4)
	hub.SetRoomEmptyHandler(func(commodityID uint) { emptied <- commodityID })
	go hub.Run()
	defer hub.Stop()

	a := newTestClient(hub, 2)
	b := newTestClient(hub, 2)
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.ClientCount(2) == 2 }, time.Second, 5*time.Millisecond)

	hub.Unregister(a)
	require.Eventually(t, func() bool { return hub.ClientCount(2) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, emptied)

	hub.Unregister(b)
	select {
	case id := <-emptied:
		assert.Equal(t, uint(2), id)
	case <-time.After(time.Second):
		t.Fatal("room empty handler not called")
	}
}
