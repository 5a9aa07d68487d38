//go:build linux

package relay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warthog618/go-gpiocdev"
)

// Hardware drives the relay through a GPIO character device line.
type Hardware struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	name string
}

func openHardware(cfg Config) (Backend, error) {
	return NewHardware(cfg)
}

// NewHardware requests cfg.Line as an output, initially inactive. With
// ActiveLow set the line is driven low to energize the relay, which is how
// most opto-isolated relay boards are wired.
func NewHardware(cfg Config) (*Hardware, error) {
	if _, err := os.Stat(filepath.Join("/dev", cfg.Chip)); err != nil {
		return nil, fmt.Errorf("gpio chip: %w", err)
	}

	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer("thermostat"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", cfg.Line, err)
	}

	return &Hardware{
		chip: chip,
		line: line,
		name: fmt.Sprintf("gpiocdev:%s/%d", cfg.Chip, cfg.Line),
	}, nil
}

// Write sets the logical line value; active-low inversion is done by the
// kernel.
func (h *Hardware) Write(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return h.line.SetValue(v)
}

// Close drives the line inactive and releases it. The line is left as an
// output: reconfiguring to input would let an active-low board float on.
func (h *Hardware) Close() error {
	var errs []error
	if h.line != nil {
		if err := h.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("set inactive: %w", err))
		}
		if err := h.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Name returns the chip and line in use.
func (h *Hardware) Name() string {
	return h.name
}
