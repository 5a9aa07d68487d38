package sensor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrCRC     = errors.New("sensor: crc check failed")
	ErrNoMatch = errors.New("sensor: no temperature in w1_slave output")
)

var tempPattern = regexp.MustCompile(`t=(-?\d+)`)

// W1 reads a DS18B20 through the w1_slave sysfs file.
type W1 struct {
	path     string
	fallback *Simulated
	readFile func(string) ([]byte, error)

	// At most one file read is in flight; callers arriving meanwhile wait
	// on it instead of starting another.
	mu       sync.Mutex
	inflight *w1Read
}

type w1Read struct {
	done chan struct{}
	data []byte
	err  error
}

// NewW1 creates a sensor reading path. Failed reads are answered from fallback.
func NewW1(path string, fallback *Simulated) *W1 {
	return &W1{path: path, fallback: fallback, readFile: os.ReadFile}
}

// Mode returns SourceW1.
func (s *W1) Mode() string {
	return SourceW1
}

// Read returns the hardware temperature, or a simulated value with OK=false
// if the device could not be read before ctx expired.
func (s *W1) Read(ctx context.Context) Reading {
	c, err := s.readCelsius(ctx)
	if err != nil {
		log.Printf("sensor: read %s: %v, using simulated value", s.path, err)
		r := s.fallback.Read(ctx)
		r.OK = false
		return r
	}
	return Reading{Celsius: c, OK: true, Source: SourceW1}
}

func (s *W1) readCelsius(ctx context.Context) (float64, error) {
	// The kernel driver takes ~750ms per conversion; a wedged bus must not
	// hold the caller past its deadline.
	rd := s.startRead()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-rd.done:
		if rd.err != nil {
			return 0, rd.err
		}
		return ParseW1(rd.data)
	}
}

// startRead returns the read in flight, starting one if there is none.
func (s *W1) startRead() *w1Read {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight != nil {
		return s.inflight
	}
	rd := &w1Read{done: make(chan struct{})}
	s.inflight = rd
	go func() {
		rd.data, rd.err = s.readFile(s.path)
		s.mu.Lock()
		s.inflight = nil
		s.mu.Unlock()
		close(rd.done)
	}()
	return rd
}

// ParseW1 extracts degrees Celsius from w1_slave output, e.g.
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseW1(data []byte) (float64, error) {
	text := string(data)
	first, _, _ := strings.Cut(text, "\n")
	if strings.HasSuffix(strings.TrimSpace(first), "NO") {
		return 0, ErrCRC
	}

	m := tempPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, ErrNoMatch
	}
	milli, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parse millidegrees %q: %w", m[1], err)
	}
	return float64(milli) / 1000, nil
}
