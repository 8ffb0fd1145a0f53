package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clinic/dashboard/internal/platform/auth"
	"github.com/clinic/dashboard/internal/platform/realtime"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestClient(hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, 8),
		hub:    hub,
	}
}

func receive(t *testing.T, c *Client) realtime.Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}
	return realtime.Message{}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Send:
		t.Fatal("client should not have received a message")
	default:
	}
}

func TestHub_RegisterSubscribesOwnChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	client := newTestClient(hub, userID)

	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount(realtime.UserChannel(userID)) != 1 {
		t.Fatalf("expected client on its own channel")
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(hub, uuid.New())
	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected Send channel to be closed")
	}

	// second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_PublishReachesOnlyTargetUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()
	aliceTab1 := newTestClient(hub, alice)
	aliceTab2 := newTestClient(hub, alice)
	bobTab := newTestClient(hub, bob)
	hub.Register(aliceTab1)
	hub.Register(aliceTab2)
	hub.Register(bobTab)

	err := hub.Publish(context.Background(), realtime.UserChannel(alice), "notification.created",
		map[string]string{"title": "Order placed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range []*Client{aliceTab1, aliceTab2} {
		msg := receive(t, c)
		if msg.Event != "notification.created" {
			t.Errorf("expected notification.created, got %s", msg.Event)
		}
	}
	assertNothing(t, bobTab)
}

func TestHub_SubscribeRejectsForeignChannels(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice, bob := uuid.New(), uuid.New()
	client := newTestClient(hub, alice)
	hub.Register(client)

	hub.Subscribe(client, []string{realtime.UserChannel(bob), "orders"})

	if hub.TopicCount(realtime.UserChannel(bob)) != 0 {
		t.Error("client must not subscribe to another user's channel")
	}
	if len(client.Topics) != 1 {
		t.Errorf("expected topics unchanged, got %v", client.Topics)
	}
}

func TestHub_UnsubscribeAndResubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	own := realtime.UserChannel(userID)
	client := newTestClient(hub, userID)
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{own}})
	if hub.TopicCount(own) != 0 {
		t.Fatalf("expected unsubscribed client, got %d", hub.TopicCount(own))
	}
	hub.Publish(context.Background(), own, "notification.created", nil)
	assertNothing(t, client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{own, own}})
	if hub.TopicCount(own) != 1 || len(client.Topics) != 1 {
		t.Fatalf("expected single resubscription, got count=%d topics=%v", hub.TopicCount(own), client.Topics)
	}
}

func TestHub_Ping(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newTestClient(hub, uuid.New())
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "ping"})
	if msg := receive(t, client); msg.Event != "pong" {
		t.Errorf("expected pong, got %s", msg.Event)
	}
}

func TestHub_SlowClientDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var dropped []string
	hub.OnDrop(func(topic string) { dropped = append(dropped, topic) })

	userID := uuid.New()
	client := &Client{ID: "slow", UserID: userID, Send: make(chan []byte, 1), hub: hub}
	hub.Register(client)

	own := realtime.UserChannel(userID)
	if n := hub.Broadcast(own, []byte(`{}`)); n != 1 {
		t.Fatalf("expected first message delivered, got %d", n)
	}
	if n := hub.Broadcast(own, []byte(`{}`)); n != 0 {
		t.Fatalf("expected second message dropped, got %d", n)
	}
	if len(dropped) != 1 || dropped[0] != own {
		t.Errorf("expected drop callback for %s, got %v", own, dropped)
	}
}

func TestHub_DeliverRelayedMessage(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	client := newTestClient(hub, userID)
	hub.Register(client)

	hub.Deliver(realtime.Message{ID: "m1", Origin: "node-b", Channel: realtime.UserChannel(userID), Event: "notification.created"})

	if msg := receive(t, client); msg.ID != "m1" {
		t.Errorf("expected relayed message m1, got %s", msg.ID)
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient(hub, userID)
			hub.Register(c)
			hub.Publish(context.Background(), realtime.UserChannel(userID), "x", nil)
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHandler_RequiresActor(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	h := NewHandler(hub, nil)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), httptest.NewRecorder())
	err := h.HandleConnect(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_CheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(zerolog.Nop()), []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://app.example.com")
	if !h.upgrader.CheckOrigin(req) {
		t.Error("expected configured origin to be accepted")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if h.upgrader.CheckOrigin(req) {
		t.Error("expected unknown origin to be rejected")
	}
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub, nil)
	userID := uuid.New()

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithActor(c.Request().Context(), auth.Actor{UserID: userID, Role: auth.RolePatient})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	handler.RegisterRoutes(e)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	own := realtime.UserChannel(userID)
	deadline := time.Now().Add(time.Second)
	for hub.TopicCount(own) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.TopicCount(own) != 1 {
		t.Fatalf("expected connection registered on %s", own)
	}

	hub.Publish(context.Background(), own, "notification.created", map[string]string{"title": "Stock reordered"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received realtime.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	if received.Event != "notification.created" || received.Channel != own {
		t.Fatalf("unexpected message %+v", received)
	}
}
