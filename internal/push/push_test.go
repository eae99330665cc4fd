package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/riffbar/internal/core"
)

type recordingSink struct {
	mu       sync.Mutex
	playback []*core.PlaybackSnapshot
	queues   []*core.QueueSnapshot
}

func (s *recordingSink) ApplyPlayback(next *core.PlaybackSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = append(s.playback, next)
	return true
}

func (s *recordingSink) ApplyQueue(next *core.QueueSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = append(s.queues, next)
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playback), len(s.queues)
}

func TestURLFromBackend(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/api/spotify", "wss://example.com/ws"},
		{"http://localhost:8080/api/spotify", "ws://localhost:8080/ws"},
	}
	for _, tt := range tests {
		got, err := URLFromBackend(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("URLFromBackend(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestDispatch(t *testing.T) {
	sink := &recordingSink{}
	var notes []string
	var authed []bool
	c, err := New("ws://example.com/ws", sink,
		WithNotifier(func(text string) { notes = append(notes, text) }),
		WithAuthHandler(func(ok bool) { authed = append(authed, ok) }),
	)
	require.NoError(t, err)

	require.NoError(t, c.Dispatch([]byte(`{"type":"playback_update","data":{"is_playing":true,"progress_ms":42,"item":{"id":"t1","name":"Song"}}}`)))
	require.NoError(t, c.Dispatch([]byte(`{"type":"queue_update","data":"{\"queue\":[{\"uri\":\"spotify:track:q1\"}]}"}`)))
	require.NoError(t, c.Dispatch([]byte(`{"type":"status_message","data":"Backend restarted"}`)))
	require.NoError(t, c.Dispatch([]byte(`{"type":"control_action","data":{"action":"pause","result":"success"}}`)))
	require.NoError(t, c.Dispatch([]byte(`{"type":"auth_update","data":false}`)))
	require.NoError(t, c.Dispatch([]byte(`{"type":"something_new","data":1}`)))

	require.Len(t, sink.playback, 1)
	assert.Equal(t, "t1", sink.playback[0].TrackID())
	assert.Equal(t, int64(42), sink.playback[0].ProgressMs)
	require.Len(t, sink.queues, 1)
	assert.Equal(t, "spotify:track:q1", sink.queues[0].Queue[0].URI)
	assert.Equal(t, []string{"Backend restarted", "pause: success"}, notes)
	assert.Equal(t, []bool{false}, authed)

	assert.Error(t, c.Dispatch([]byte(`not json`)))
	assert.Error(t, c.Dispatch([]byte(`{"type":"playback_update"}`)))
}

// wsPair returns both ends of a websocket connection. serve runs on the
// server end.
func wsPair(t *testing.T, serve func(conn *websocket.Conn)) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamReadsFramesAcrossMessages(t *testing.T) {
	conn := wsPair(t, func(conn *websocket.Conn) {
		for _, part := range []string{
			"MESSAGE\ndestination:/topic/a\n\nhel",
			"lo\x00",
			"\n",
			"MESSAGE\ndestination:/topic/b\n\none\x00MESSAGE\ndestination:/topic/c\n\ntwo\x00",
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(part)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	})

	r := frame.NewReader(newStream(conn))
	var bodies, destinations []string
	for len(bodies) < 3 {
		f, err := r.Read()
		require.NoError(t, err)
		if f == nil {
			continue // heart-beat
		}
		bodies = append(bodies, string(f.Body))
		destinations = append(destinations, f.Header.Get(frame.Destination))
	}
	assert.Equal(t, []string{"hello", "one", "two"}, bodies)
	assert.Equal(t, []string{"/topic/a", "/topic/b", "/topic/c"}, destinations)
}

func TestStreamWritesOneMessagePerFrame(t *testing.T) {
	got := make(chan string, 1)
	conn := wsPair(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- string(data)
	})

	w := frame.NewWriter(newStream(conn))
	require.NoError(t, w.Write(frame.New(frame.SUBSCRIBE, frame.Id, "0", frame.Destination, DefaultTopic)))

	select {
	case data := <-got:
		assert.True(t, strings.HasPrefix(data, "SUBSCRIBE\n"), data)
		assert.Contains(t, data, "destination:"+DefaultTopic)
		assert.True(t, strings.HasSuffix(data, "\x00"), "frame ends in NUL within the same message")
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

// stompServer accepts one subscription and sends each body as a MESSAGE.
func stompServer(t *testing.T, bodies ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		s := newStream(conn)
		reader, writer := frame.NewReader(s), frame.NewWriter(s)

		connect, err := reader.Read()
		if err != nil || connect == nil || connect.Command != frame.CONNECT {
			return
		}
		if err := writer.Write(frame.New(frame.CONNECTED, frame.Version, "1.2", frame.HeartBeat, "0,0")); err != nil {
			return
		}

		sub, err := reader.Read()
		if err != nil || sub == nil || sub.Command != frame.SUBSCRIBE {
			return
		}
		id := sub.Header.Get(frame.Id)

		_ = conn.WriteMessage(websocket.TextMessage, []byte("\n"))
		for i, body := range bodies {
			msg := frame.New(frame.MESSAGE,
				frame.Destination, sub.Header.Get(frame.Destination),
				frame.Subscription, id,
				frame.MessageId, strconv.Itoa(i),
			)
			msg.Body = []byte(body)
			if err := writer.Write(msg); err != nil {
				return
			}
		}

		// Hold the connection until the client goes away.
		for {
			if _, err := reader.Read(); err != nil {
				return
			}
		}
	}))
}

func TestClientReceivesUpdates(t *testing.T) {
	srv := stompServer(t,
		`{"type":"playback_update","data":{"is_playing":false,"item":{"id":"pushed"}}}`,
		`{"type":"queue_update","data":{"queue":[]}}`,
	)
	defer srv.Close()

	sink := &recordingSink{}
	c, err := New("ws"+strings.TrimPrefix(srv.URL, "http"), sink)
	require.NoError(t, err)

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool {
		p, q := sink.counts()
		return p == 1 && q == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, c.Connections())
	assert.Equal(t, "pushed", sink.playback[0].TrackID())

	c.Stop()
	assert.False(t, c.Running())
}

func TestClientReconnects(t *testing.T) {
	var mu sync.Mutex
	accepted := 0
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepted++
		mu.Unlock()
		conn.Close()
	}))
	defer srv.Close()

	c, err := New("ws"+strings.TrimPrefix(srv.URL, "http"), &recordingSink{},
		WithReconnectDelay(10*time.Millisecond))
	require.NoError(t, err)

	c.Start(context.Background())
	defer c.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return accepted >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewRejectsHTTPURL(t *testing.T) {
	_, err := New("http://example.com/ws", &recordingSink{})
	assert.Error(t, err)
}
