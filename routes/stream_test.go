package routes_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/realtime"
)

type sseEvent struct {
	name string
	data []byte
}

type eventStream struct {
	events chan sseEvent
	resp   *http.Response
}

// listen serves the app on a loopback port; event streams need a real
// connection
func (e *env) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	controllers.SetStreamContext(ctx)
	prevBeat := realtime.HeartbeatInterval
	realtime.HeartbeatInterval = 50 * time.Millisecond

	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() {
		cancel()
		_ = e.app.ShutdownWithTimeout(2 * time.Second)
		controllers.SetStreamContext(context.Background())
		realtime.HeartbeatInterval = prevBeat
	})
	return "http://" + ln.Addr().String()
}

func openStream(t *testing.T, url, token string) *eventStream {
	t.Helper()
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	s := &eventStream{events: make(chan sseEvent, 64), resp: resp}
	go func() {
		defer close(s.events)
		r := bufio.NewReader(resp.Body)
		var ev sseEvent
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				if ev.name != "" && ev.name != "heartbeat" {
					s.events <- ev
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = []byte(strings.TrimPrefix(line, "data: "))
			}
		}
	}()
	t.Cleanup(s.close)
	return s
}

func (s *eventStream) close() { _ = s.resp.Body.Close() }

func (s *eventStream) next(t *testing.T, name string) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-s.events:
		require.True(t, ok, "stream ended")
		require.Equal(t, name, ev.name, string(ev.data))
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s event", name)
	}
	return sseEvent{}
}

func (s *eventStream) change(t *testing.T, op realtime.Op) realtime.Event {
	t.Helper()
	var ev realtime.Event
	require.NoError(t, json.Unmarshal(s.next(t, string(op)).data, &ev))
	return ev
}

func TestCatalogStreams(t *testing.T) {
	e := newEnv(t)
	admin := e.register(t, "boss@spa.vn", "Boss", "admin")
	customer := e.register(t, "lan@spa.vn", "Lan", "customer")
	base := e.listen(t)

	t.Run("Should send the snapshot then each service change", func(t *testing.T) {
		s := openStream(t, base+"/services/stream", customer.Token)
		assert.JSONEq(t, `[]`, string(s.next(t, "snapshot").data))

		created := e.createService(t, admin.Token, "Hot stone", 700000)
		ev := s.change(t, realtime.OpPut)
		assert.Equal(t, realtime.ServicePath(created.ID), ev.Path)
		assert.Contains(t, string(ev.Data), `"serviceName":"Hot stone"`)

		resp := e.json(t, "DELETE", "/services/"+created.ID, admin.Token, nil)
		require.Equal(t, fiber.StatusNoContent, resp.status)
		ev = s.change(t, realtime.OpDelete)
		assert.Equal(t, realtime.ServicePath(created.ID), ev.Path)
	})

	t.Run("Should include earlier changes in a fresh snapshot", func(t *testing.T) {
		e.createService(t, admin.Token, "Facial", 300000)
		s := openStream(t, base+"/services/stream", customer.Token)
		var snap []service
		require.NoError(t, json.Unmarshal(s.next(t, "snapshot").data, &snap))
		require.Len(t, snap, 1)
		assert.Equal(t, "Facial", snap[0].ServiceName)
		assert.Equal(t, 240000.0, snap[0].PromoPrice)
	})

	t.Run("Should stream todos", func(t *testing.T) {
		s := openStream(t, base+"/todos/stream", customer.Token)
		assert.JSONEq(t, `[]`, string(s.next(t, "snapshot").data))

		resp := e.json(t, "POST", "/todos", customer.Token, map[string]string{"text": "Restock oils"})
		require.Equal(t, fiber.StatusCreated, resp.status)
		ev := s.change(t, realtime.OpPut)
		assert.True(t, strings.HasPrefix(ev.Path, "todos/"))
	})
}

func TestRegistrationStreams(t *testing.T) {
	e := newEnv(t)
	admin := e.register(t, "boss@spa.vn", "Boss", "admin")
	customer := e.register(t, "lan@spa.vn", "Lan", "customer")
	spa := e.createService(t, admin.Token, "Hot stone", 700000)
	base := e.listen(t)

	pending := openStream(t, base+"/admin/registrations/stream?status=pending", admin.Token)
	mine := openStream(t, base+"/registrations/stream", customer.Token)
	assert.JSONEq(t, `[]`, string(pending.next(t, "snapshot").data))
	assert.JSONEq(t, `[]`, string(mine.next(t, "snapshot").data))

	resp := e.json(t, "POST", "/services/"+spa.ID+"/registrations", customer.Token, map[string]string{
		"appointmentDate": "2030-06-02", "appointmentTime": "09:30", "location": "hanoi",
	})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var reg registration
	resp.decode(t, &reg)

	t.Run("Should push a booking to both feeds", func(t *testing.T) {
		ev := pending.change(t, realtime.OpPut)
		assert.Equal(t, realtime.RegistrationPath(reg.ID), ev.Path)

		ev = mine.change(t, realtime.OpPut)
		assert.Equal(t, realtime.UserRegistrationPath(customer.User.ID, reg.ID), ev.Path)
		var mirror struct {
			RegistrationID string `json:"registrationId"`
			Status         string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(ev.Data, &mirror))
		assert.Equal(t, reg.ID, mirror.RegistrationID)
		assert.Equal(t, "pending", mirror.Status)
	})

	t.Run("Should drop a confirmed registration from the pending feed", func(t *testing.T) {
		resp := e.json(t, "PATCH", "/admin/registrations/"+reg.ID+"/status", admin.Token, map[string]string{"status": "confirmed"})
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

		ev := pending.change(t, realtime.OpDelete)
		assert.Equal(t, realtime.RegistrationPath(reg.ID), ev.Path)
		assert.Empty(t, ev.Data)

		ev = mine.change(t, realtime.OpPatch)
		assert.JSONEq(t, `{"status":"confirmed"}`, string(ev.Data))
	})

	t.Run("Should snapshot the same shape the customer feed pushes", func(t *testing.T) {
		s := openStream(t, base+"/registrations/stream", customer.Token)
		var snap []struct {
			RegistrationID string `json:"registrationId"`
			Status         string `json:"status"`
			LocationName   string `json:"locationName"`
		}
		require.NoError(t, json.Unmarshal(s.next(t, "snapshot").data, &snap))
		require.Len(t, snap, 1)
		assert.Equal(t, reg.ID, snap[0].RegistrationID)
		assert.Equal(t, "confirmed", snap[0].Status)
		assert.Equal(t, "Hà Nội", snap[0].LocationName)
	})

	t.Run("Should refuse paginated streams", func(t *testing.T) {
		resp := e.json(t, "GET", "/admin/registrations/stream?limit=5", admin.Token, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})
}

type sessionEvent struct {
	Stack string `json:"stack"`
	User  *struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

func TestSessionStream(t *testing.T) {
	e := newEnv(t)
	customer := e.register(t, "lan@spa.vn", "Lan", "customer")
	base := e.listen(t)

	read := func(s *eventStream) sessionEvent {
		var v sessionEvent
		require.NoError(t, json.Unmarshal(s.next(t, "session").data, &v))
		return v
	}

	t.Run("Should stream the signed-out session", func(t *testing.T) {
		s := openStream(t, base+"/session/stream", "")
		v := read(s)
		assert.Equal(t, "unauthenticated", v.Stack)
		assert.Nil(t, v.User)
	})

	t.Run("Should push a profile edit and keep it across a resubscribe", func(t *testing.T) {
		s := openStream(t, base+"/session/stream", customer.Token)
		v := read(s)
		assert.Equal(t, "customer", v.Stack)
		require.NotNil(t, v.User)
		assert.Equal(t, "Lan", v.User.DisplayName)

		resp := e.json(t, "PATCH", "/profile", customer.Token, map[string]string{"displayName": "Lan Anh"})
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
		v = read(s)
		require.NotNil(t, v.User)
		assert.Equal(t, "Lan Anh", v.User.DisplayName)
		s.close()

		// EventSource clients pass the token in the query
		again := openStream(t, base+"/session/stream?access_token="+customer.Token, "")
		v = read(again)
		require.NotNil(t, v.User)
		assert.Equal(t, "Lan Anh", v.User.DisplayName)
	})
}

func (s *eventStream) ended(t *testing.T) {
	t.Helper()
	for {
		select {
		case _, ok := <-s.events:
			if !ok {
				return
			}
		case <-time.After(3 * time.Second):
			t.Fatal("stream still open")
		}
	}
}

func TestStreamsEndWithServerContext(t *testing.T) {
	e := newEnv(t)
	customer := e.register(t, "lan@spa.vn", "Lan", "customer")
	base := e.listen(t)

	ctx, stop := context.WithCancel(context.Background())
	controllers.SetStreamContext(ctx)

	services := openStream(t, base+"/services/stream", customer.Token)
	services.next(t, "snapshot")
	sess := openStream(t, base+"/session/stream", customer.Token)
	sess.next(t, "session")

	stop()
	services.ended(t)
	sess.ended(t)
}
