//go:build linux

package ev3dev

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/viamrobotics/evdev"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"github.com/ev3blocks/pblocks/logging"
)

// DefaultButtonDevice is the input device of the brick buttons.
const DefaultButtonDevice = "/dev/input/by-path/platform-gpio_keys-event"

// BackButton reports whether the escape button of the brick is held down.
// Key events are consumed in the background until Close.
type BackButton struct {
	dev     *evdev.Evdev
	logger  logging.Logger
	pressed atomic.Bool

	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// OpenBackButton opens the button input device, usually DefaultButtonDevice.
func OpenBackButton(device string, logger logging.Logger) (*BackButton, error) {
	if device == "" {
		device = DefaultButtonDevice
	}
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", device)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &BackButton{dev: dev, logger: logger, cancel: cancel}
	b.watch(dev.Poll(ctx))
	return b, nil
}

// watch tracks the back key until events is closed.
func (b *BackButton) watch(events <-chan *evdev.EventEnvelope) {
	b.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer b.activeBackgroundWorkers.Done()
		for env := range events {
			if env == nil {
				continue
			}
			b.handle(env.Event)
		}
	})
}

func (b *BackButton) handle(ev evdev.Event) {
	switch ev.Type {
	case evdev.EventKey:
		if evdev.KeyType(ev.Code) == evdev.KeyBackSpace {
			b.pressed.Store(ev.Value != 0)
		}
	case evdev.EventSync:
		if evdev.SyncType(ev.Code) == evdev.SyncDisconnect {
			b.logger.Warn("button device disconnected")
			b.pressed.Store(false)
		}
	default:
	}
}

// Requested reports whether the button is pressed.
func (b *BackButton) Requested() bool {
	return b.pressed.Load()
}

// Close stops reading events and closes the input device.
func (b *BackButton) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.activeBackgroundWorkers.Wait()
	if b.dev == nil {
		return nil
	}
	return b.dev.Close()
}
