package main

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mastercactapus/wellrig/camera"
)

const frameWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// frames streams the live view as colorized PNG images, one binary
// message per frame.
func (a *api) frames(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		a.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer ws.Close()

	ch, cancel := a.r.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var buf bytes.Buffer
	send := func(f *camera.Frame) error {
		buf.Reset()
		if err := camera.EncodePNG(&buf, f); err != nil {
			return err
		}
		ws.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
		return ws.WriteMessage(websocket.BinaryMessage, buf.Bytes())
	}

	if f, err := a.r.Frame(); err == nil {
		if err := send(f); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case f := <-ch:
			if err := send(f); err != nil {
				a.log.Debug("frame stream closed", "error", err)
				return
			}
		}
	}
}
