package main

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/vivizzz007/vivi-music-sub008/internal/api/httpapi"
)

// listen prints events from a running daemon until interrupted.
func listen(addr, token string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/v1/events"}
	header := http.Header{httpapi.AdminTokenHeader: []string{token}}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", addr)
	}
	defer conn.Close()
	zlog.Info().Msgf("Connected to %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		var msg httpapi.EventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "event stream ended")
		}
		printMessage(msg)
	}
}

func printMessage(msg httpapi.EventMessage) {
	ts := msg.At.Local().Format("15:04:05")
	switch msg.Kind {
	case httpapi.KindInitialState:
		fmt.Printf("[%s] connected, busy=%v\n", ts, msg.Busy)
	default:
		line := fmt.Sprintf("[%s] #%d %-14s %s", ts, msg.SequenceNo, msg.Kind, msg.Category)
		if msg.Pulled+msg.Removed+msg.Pushed > 0 {
			line += fmt.Sprintf(" pulled=%d removed=%d pushed=%d", msg.Pulled, msg.Removed, msg.Pushed)
		}
		if msg.Err != "" {
			line += " error=" + msg.Err
		}
		fmt.Println(line)
	}
}
