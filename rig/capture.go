package rig

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/mastercactapus/wellrig/telemetry"
)

// RowTimeLayout is the timestamp format of aggregate rows.
const RowTimeLayout = "15:04:05.000000"

// aggregate averages the latest frame under every well of the mask.
func (c *Controller) aggregate() (labels []string, means []float64, err error) {
	mask, labels, size, err := c.currentMask()
	if err != nil {
		return nil, nil, err
	}
	f, err := c.Frame()
	if err != nil {
		return nil, nil, err
	}
	if f.Width != size.X || f.Height != size.Y {
		return nil, nil, fmt.Errorf("%w: mask built for %dx%d, frame is %dx%d", ErrNotReady, size.X, size.Y, f.Width, f.Height)
	}
	return labels, mask.Mean(f.At), nil
}

func writeHeader(w io.Writer, labels []string) error {
	cw := csv.NewWriter(w)
	cw.Write(append([]string{"Timestamp"}, labels...))
	cw.Flush()
	return cw.Error()
}

func writeRow(w io.Writer, ts time.Time, means []float64) error {
	rec := make([]string, 0, len(means)+1)
	rec = append(rec, ts.Format(RowTimeLayout))
	for _, m := range means {
		if math.IsNaN(m) {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, strconv.FormatFloat(m, 'f', -1, 64))
	}
	cw := csv.NewWriter(w)
	cw.Write(rec)
	cw.Flush()
	return cw.Error()
}

func (c *Controller) publishRow(ts time.Time, labels []string, means []float64) {
	for i, m := range means {
		if math.IsNaN(m) {
			continue
		}
		c.sink.Sample(telemetry.Sample{
			Series: telemetry.SeriesWell,
			Time:   ts,
			Value:  m,
			Tags:   map[string]string{"well": labels[i]},
		})
	}
	c.sink.Event(telemetry.Event{Kind: telemetry.EventRow, Time: ts, Fields: map[string]interface{}{"wells": len(means)}})
}

// WriteRow appends one aggregate row for ts to <data dir>/<name>.csv,
// writing the header first if the file is new.
func (c *Controller) WriteRow(name string, ts time.Time) error {
	labels, means, err := c.aggregate()
	if err != nil {
		return err
	}
	path, err := c.dataPath(name, ".csv")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		if err := writeHeader(f, labels); err != nil {
			return err
		}
	}
	if err := writeRow(f, ts, means); err != nil {
		return err
	}
	c.publishRow(ts, labels, means)
	return nil
}

// StartCapture builds the mask for radius in the background, creates
// <data dir>/<name>.csv with a header and appends one row per row
// interval until StopCapture.
func (c *Controller) StartCapture(radius float64, name string) error {
	path, err := c.dataPath(name, ".csv")
	if err != nil {
		return err
	}
	if _, err := c.Frame(); err != nil {
		return err
	}

	c.wmx.Lock()
	defer c.wmx.Unlock()
	if c.capture.running() {
		return ErrBusy
	}
	c.capName = name
	c.capture = startWorker(func(ctx context.Context) error {
		err := c.runCapture(ctx, radius, path)
		if err != nil {
			c.log.Error("capture", "file", path, "error", err)
		}
		return err
	})
	return nil
}

func (c *Controller) runCapture(ctx context.Context, radius float64, path string) error {
	if _, err := c.BuildMask(radius); err != nil {
		return err
	}
	labels, _, err := c.aggregate()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeHeader(f, labels); err != nil {
		return err
	}
	c.log.Info("capture started", "file", path)

	t := time.NewTicker(c.opts.RowInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("capture stopped", "file", path)
			return nil
		case <-t.C:
		}

		labels, means, err := c.aggregate()
		if err != nil {
			c.log.Warn("aggregate", "error", err)
			continue
		}
		ts := c.opts.Now()
		if err := writeRow(f, ts, means); err != nil {
			return err
		}
		c.publishRow(ts, labels, means)
	}
}

// StopCapture stops a running capture and waits for it.
func (c *Controller) StopCapture() error {
	c.wmx.Lock()
	w := c.capture
	c.capture = nil
	c.wmx.Unlock()
	return w.stop()
}

// Capturing returns the capture file name while a capture runs.
func (c *Controller) Capturing() (string, bool) {
	c.wmx.Lock()
	defer c.wmx.Unlock()
	if !c.capture.running() {
		return "", false
	}
	return c.capName, true
}
