package telemetry

import (
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"

	sse "github.com/alexandrevicenzi/go-sse"
)

// SSE channel names, relative to the mount point of the handler.
const (
	ChannelSamples = "/events/samples"
	ChannelEvents  = "/events/session"
)

// SSE pushes samples and events to browsers as server-sent events.
type SSE struct {
	srv *sse.Server
	log *slog.Logger
}

var _ Sink = &SSE{}

func NewSSE(logger *slog.Logger) *SSE {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSE{
		srv: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
		log: logger.With("component", "sse"),
	}
}

// ServeHTTP must be mounted at /events/.
func (s *SSE) ServeHTTP(w http.ResponseWriter, req *http.Request) { s.srv.ServeHTTP(w, req) }

type ssePayload struct {
	Kind   string                 `json:"kind,omitempty"`
	Series string                 `json:"series,omitempty"`
	Time   int64                  `json:"t"`
	Value  *float64               `json:"value,omitempty"`
	Tags   map[string]string      `json:"tags,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

func (s *SSE) send(channel string, p ssePayload) {
	data, err := json.Marshal(p)
	if err != nil {
		s.log.Error("marshal json", "error", err)
		return
	}
	s.srv.SendMessage(channel, sse.SimpleMessage(string(data)))
}

func (s *SSE) Sample(smp Sample) {
	v := smp.Value
	s.send(ChannelSamples, ssePayload{
		Series: smp.Series,
		Time:   smp.Time.UnixMilli(),
		Value:  &v,
		Tags:   smp.Tags,
	})
}

func (s *SSE) Event(e Event) {
	s.send(ChannelEvents, ssePayload{
		Kind:   e.Kind,
		Time:   e.Time.UnixMilli(),
		Fields: e.Fields,
	})
}

func (s *SSE) Close() { s.srv.Shutdown() }
