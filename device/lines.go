package device

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// retryDelay paces the reader after a read error so a dead or
// timing-out port does not spin.
const retryDelay = 10 * time.Millisecond

// lineReader splits everything read from r into trimmed, non-empty lines.
type lineReader struct {
	lines   chan string
	errs    chan error
	closeCh chan struct{}
	once    sync.Once
}

func newLineReader(r io.Reader) *lineReader {
	l := &lineReader{
		lines:   make(chan string, 64),
		errs:    make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go l.loop(r)
	return l
}

func (l *lineReader) loop(r io.Reader) {
	br := bufio.NewReader(r)
	var partial []byte
	for {
		chunk, err := br.ReadBytes('\n')
		partial = append(partial, chunk...)
		if err == nil {
			line := strings.TrimSpace(string(partial))
			partial = partial[:0]
			if line == "" {
				continue
			}
			select {
			case l.lines <- line:
			case <-l.closeCh:
				return
			}
			continue
		}

		select {
		case <-l.closeCh:
			return
		default:
		}

		// serial ports report a read timeout as io.EOF; keep the partial line
		if err != io.EOF {
			select {
			case l.errs <- err:
			default:
			}
		}
		time.Sleep(retryDelay)
	}
}

func (l *lineReader) readLine(timeout time.Duration) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case line := <-l.lines:
		return line, nil
	case err := <-l.errs:
		return "", fmt.Errorf("%w: read: %w", ErrDeviceIO, err)
	case <-l.closeCh:
		return "", ErrClosed
	case <-t.C:
		return "", ErrTimeout
	}
}

func (l *lineReader) close() {
	l.once.Do(func() { close(l.closeCh) })
}
