package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/models"
)

func dialTestHub(t *testing.T, query string) (*StateHub, *websocket.Conn) {
	t.Helper()

	hub := NewStateHub(common.NewSilentLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func waitForClient(t *testing.T, hub *StateHub) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStateHub_BroadcastReachesClient(t *testing.T) {
	hub, conn := dialTestHub(t, "")

	// Registration races the broadcast; wait for the hub to pick up the client.
	waitForClient(t, hub)

	hub.Broadcast(models.DashboardEvent{
		Domain:    models.DomainMarket,
		Snapshot:  models.DashboardSnapshot{SelectedSymbol: "COMP"},
		Timestamp: time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.DashboardEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, models.DomainMarket, event.Domain)
	assert.Equal(t, "COMP", event.Snapshot.SelectedSymbol)
}

func TestStateHub_DomainFilterDropsUnwantedEvents(t *testing.T) {
	hub, conn := dialTestHub(t, "?domains=chart")

	waitForClient(t, hub)

	hub.Broadcast(models.DashboardEvent{
		Domain:    models.DomainMarket,
		Timestamp: time.Now(),
	})
	hub.Broadcast(models.DashboardEvent{
		Domain:    models.DomainChart,
		Snapshot:  models.DashboardSnapshot{SelectedSymbol: "TSLA"},
		Timestamp: time.Now(),
	})

	// The first message through must be the chart event; the market one
	// never enters this client's queue.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.DashboardEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, models.DomainChart, event.Domain)
	assert.Equal(t, "TSLA", event.Snapshot.SelectedSymbol)
}

func TestParseDomainFilter(t *testing.T) {
	assert.Nil(t, parseDomainFilter(""))
	assert.Nil(t, parseDomainFilter("bogus,nonsense"))

	filter := parseDomainFilter("chart, scheduler")
	require.Len(t, filter, 2)
	assert.True(t, filter[models.DomainChart])
	assert.True(t, filter[models.DomainScheduler])
	assert.False(t, filter[models.DomainMarket])
}

func TestStateHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewStateHub(common.NewSilentLogger())
	go hub.Run()
	defer hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Broadcast(models.DashboardEvent{Domain: models.DomainChart})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked with no clients")
	}
}
