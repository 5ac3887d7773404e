// Package spjs connects to instruments attached to a remote Serial Port
// JSON Server over its websocket API.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 3 * time.Second

// DefaultWriteTimeout bounds WriteString when NewSPJS is given zero.
const DefaultWriteTimeout = 5 * time.Second

type SPJS struct {
	url     string
	log     *slog.Logger
	timeout time.Duration

	mx   sync.RWMutex
	subs map[string]chan string

	// connCh is closed while a websocket is up.
	connCh chan struct{}

	outgoing chan message
	closeCh  chan struct{}
	once     sync.Once
}

type message struct {
	done     chan struct{}
	payload  []byte
	deadline time.Time
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

type ErrorMessage struct {
	Error string
}

var (
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("spjs: closed")

	// ErrNotConnected is returned when no websocket came up within the
	// write timeout.
	ErrNotConnected = errors.New("spjs: not connected")

	ErrWriteTimeout = errors.New("spjs: write timed out")
)

// NewSPJS starts a connection to the server at url. It reconnects until
// Close is called. Writes give up after writeTimeout.
func NewSPJS(url string, writeTimeout time.Duration, logger *slog.Logger) *SPJS {
	if logger == nil {
		logger = slog.Default()
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	sp := &SPJS{
		url:      url,
		log:      logger.With("component", "spjs"),
		timeout:  writeTimeout,
		subs:     make(map[string]chan string),
		connCh:   make(chan struct{}),
		outgoing: make(chan message, 1000),
		closeCh:  make(chan struct{}),
	}

	go sp.loop()

	return sp
}

func (sp *SPJS) setConnected(up bool) {
	sp.mx.Lock()
	defer sp.mx.Unlock()
	select {
	case <-sp.connCh:
		if !up {
			sp.connCh = make(chan struct{})
		}
	default:
		if up {
			close(sp.connCh)
		}
	}
}

func (sp *SPJS) connected() <-chan struct{} {
	sp.mx.RLock()
	defer sp.mx.RUnlock()
	return sp.connCh
}

func parseSPJSMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

// subscribe routes data frames for port to the returned channel.
func (sp *SPJS) subscribe(port string) chan string {
	sp.mx.Lock()
	defer sp.mx.Unlock()
	ch := make(chan string, 256)
	sp.subs[port] = ch
	return ch
}

func (sp *SPJS) unsubscribe(port string) {
	sp.mx.Lock()
	defer sp.mx.Unlock()
	delete(sp.subs, port)
}

func (sp *SPJS) dispatch(val interface{}) {
	switch msg := val.(type) {
	case *ErrorMessage:
		sp.log.Warn("server error", "error", msg.Error)
	case *DataFrame:
		sp.mx.RLock()
		ch := sp.subs[msg.Port]
		sp.mx.RUnlock()
		if ch == nil {
			return
		}
		select {
		case ch <- msg.Data:
		default:
			sp.log.Warn("dropped data frame", "port", msg.Port)
		}
	}
}

func (sp *SPJS) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			sp.log.Error("read", "error", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			sp.log.Error("read", "error", err)
			continue
		}
		val, err := parseSPJSMessage(data, msg)
		if err != nil {
			sp.log.Debug("parse", "error", err)
			continue
		}
		sp.dispatch(val)
	}
}

func (sp *SPJS) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-sp.closeCh:
			return
		default:
		}

		sp.log.Info("connecting", "url", sp.url)
		ws, _, err := websocket.DefaultDialer.Dial(sp.url, nil)
		if err != nil {
			sp.log.Error("connect", "error", err)
			select {
			case <-time.After(reconnectDelay):
			case <-sp.closeCh:
				return
			}
			continue
		}
		sp.log.Info("connected")
		ch := make(chan struct{})
		go sp.readLoop(ws, ch)
		sp.setConnected(true)

		for {
			if nextUp.done != nil && time.Now().After(nextUp.deadline) {
				// the writer already gave up
				nextUp.done = nil
			}
			if nextUp.done != nil {
				ws.SetWriteDeadline(nextUp.deadline)
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					sp.log.Error("send", "error", err)
					sp.setConnected(false)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-ch:
				sp.setConnected(false)
				continue reconnect
			case <-sp.closeCh:
				sp.setConnected(false)
				ws.Close()
				return
			case nextUp = <-sp.outgoing:
			}
		}
	}
}

// WriteString sends a raw command and waits until it was handed to the
// websocket. It fails with ErrNotConnected or ErrWriteTimeout if that does
// not happen within the write timeout.
func (sp *SPJS) WriteString(data string) error {
	select {
	case <-sp.closeCh:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(sp.timeout)
	t := time.NewTimer(sp.timeout)
	defer t.Stop()

	select {
	case <-sp.connected():
	case <-sp.closeCh:
		return ErrClosed
	case <-t.C:
		return ErrNotConnected
	}

	ch := make(chan struct{})
	select {
	case sp.outgoing <- message{done: ch, payload: []byte(data), deadline: deadline}:
	case <-sp.closeCh:
		return ErrClosed
	case <-t.C:
		return ErrWriteTimeout
	}
	select {
	case <-ch:
		return nil
	case <-sp.closeCh:
		return ErrClosed
	case <-t.C:
		return ErrWriteTimeout
	}
}

// Close stops reconnecting and drops the websocket.
func (sp *SPJS) Close() {
	sp.once.Do(func() { close(sp.closeCh) })
}

// splitLines appends data to partial and returns every complete,
// non-empty trimmed line along with the remainder.
func splitLines(partial, data string) (lines []string, rest string) {
	buf := partial + data
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			return lines, buf
		}
		if line := strings.TrimSpace(buf[:i]); line != "" {
			lines = append(lines, line)
		}
		buf = buf[i+1:]
	}
}
