package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
)

// KindInitialState is the kind of the first message on an event stream.
const KindInitialState = "INITIAL_STATE"

const writeWait = 5 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventMessage is the wire form of a notification event.
type EventMessage struct {
	SequenceNo uint64    `json:"sequence_no"`
	RunID      string    `json:"run_id,omitempty"`
	Kind       string    `json:"kind"`
	Category   string    `json:"category,omitempty"`
	Pulled     int       `json:"pulled,omitempty"`
	Removed    int       `json:"removed,omitempty"`
	Pushed     int       `json:"pushed,omitempty"`
	Err        string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
	Busy       []string  `json:"busy,omitempty"`
}

func toMessage(ev notification.Event) EventMessage {
	return EventMessage{
		SequenceNo: ev.SequenceNo,
		RunID:      ev.RunID,
		Kind:       string(ev.Kind),
		Category:   ev.Category,
		Pulled:     ev.Pulled,
		Removed:    ev.Removed,
		Pushed:     ev.Pushed,
		Err:        ev.Err,
		At:         ev.At,
	}
}

// wsStream adapts a websocket connection to notification.Stream.
type wsStream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (a *wsStream) Send(ev notification.Event) error {
	return a.write(toMessage(ev))
}

func (a *wsStream) write(msg EventMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return a.conn.WriteJSON(msg)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	stream := &wsStream{conn: conn}
	initial := EventMessage{Kind: KindInitialState, At: time.Now(), Busy: s.busyCategories()}
	if err := stream.write(initial); err != nil {
		return
	}

	subscriptionID := s.deps.Notifier.Subscribe(stream)
	defer s.deps.Notifier.Unsubscribe(subscriptionID)
	s.log.Debug().Str("subscription", subscriptionID).Msg("Event stream opened")

	// The client sends nothing; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	select {
	case <-r.Context().Done():
	case <-closed:
	case <-s.done:
	}
	s.log.Debug().Str("subscription", subscriptionID).Msg("Event stream closed")
}
