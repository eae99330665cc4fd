package push

import (
	"errors"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// stream presents a websocket as the byte stream STOMP framing reads and
// writes. Every Write goes out as one text message; reads run across
// message boundaries, so a frame split over several messages or several
// frames packed into one are both decoded.
type stream struct {
	conn *websocket.Conn
	r    io.Reader

	wmu sync.Mutex
}

func newStream(conn *websocket.Conn) *stream {
	return &stream{conn: conn}
}

func (s *stream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the websocket. It is safe to call concurrently with Read.
func (s *stream) Close() error {
	return s.conn.Close()
}
