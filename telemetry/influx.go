package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const influxPingTimeout = 5 * time.Second

// ErrSinkUnavailable is returned when an optional network sink cannot be
// reached at startup.
var ErrSinkUnavailable = errors.New("telemetry: sink unavailable")

// InfluxConfig selects the InfluxDB v2 bucket samples are written to.
type InfluxConfig struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Influx writes samples and events as InfluxDB points using the
// non-blocking write API.
type Influx struct {
	client influxdb2.Client
	w      pointWriter
	log    *slog.Logger
}

var _ Sink = &Influx{}

// DialInflux connects and pings the server.
func DialInflux(ctx context.Context, cfg InfluxConfig, logger *slog.Logger) (*Influx, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(ctx, influxPingTimeout)
	defer cancel()
	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb ping: %w", ErrSinkUnavailable, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb not healthy", ErrSinkUnavailable)
	}

	wapi := client.WriteAPI(cfg.Org, cfg.Bucket)
	i := newInflux(wapi, logger)
	i.client = client
	go func() {
		for err := range wapi.Errors() {
			i.log.Warn("write", "error", err)
		}
	}()
	return i, nil
}

func newInflux(w pointWriter, logger *slog.Logger) *Influx {
	if logger == nil {
		logger = slog.Default()
	}
	return &Influx{w: w, log: logger.With("component", "influxdb")}
}

func (i *Influx) Sample(s Sample) {
	i.w.WritePoint(influxdb2.NewPoint(
		s.Series,
		s.Tags,
		map[string]interface{}{"value": s.Value},
		s.Time,
	))
}

func (i *Influx) Event(e Event) {
	if e.Kind == EventRow || len(e.Fields) == 0 {
		// rows are written as per-well samples
		return
	}
	i.w.WritePoint(influxdb2.NewPoint("event", map[string]string{"kind": e.Kind}, e.Fields, e.Time))
}

// Close flushes pending points.
func (i *Influx) Close() {
	i.w.Flush()
	if i.client != nil {
		i.client.Close()
	}
}
