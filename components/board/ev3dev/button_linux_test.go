package ev3dev

import (
	"testing"

	"github.com/viamrobotics/evdev"
	"go.viam.com/test"

	"github.com/ev3blocks/pblocks/logging"
)

func TestBackButtonEvents(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	events := make(chan *evdev.EventEnvelope)
	b := &BackButton{logger: logger}
	b.watch(events)

	send := func(typ evdev.EventType, code uint16, value int32) {
		events <- &evdev.EventEnvelope{Event: evdev.Event{Type: typ, Code: code, Value: value}}
	}
	// the channel is unbuffered, so a trailing report guarantees the one before it was handled
	report := func() { send(evdev.EventSync, uint16(evdev.SyncReport), 0) }

	test.That(t, b.Requested(), test.ShouldBeFalse)

	send(evdev.EventKey, uint16(evdev.KeyEnter), 1)
	report()
	test.That(t, b.Requested(), test.ShouldBeFalse)

	send(evdev.EventKey, uint16(evdev.KeyBackSpace), 1)
	report()
	test.That(t, b.Requested(), test.ShouldBeTrue)

	// autorepeat keeps it pressed
	send(evdev.EventKey, uint16(evdev.KeyBackSpace), 2)
	report()
	test.That(t, b.Requested(), test.ShouldBeTrue)

	send(evdev.EventKey, uint16(evdev.KeyBackSpace), 0)
	report()
	test.That(t, b.Requested(), test.ShouldBeFalse)

	send(evdev.EventKey, uint16(evdev.KeyBackSpace), 1)
	send(evdev.EventSync, uint16(evdev.SyncDisconnect), 0)
	report()
	test.That(t, b.Requested(), test.ShouldBeFalse)
	test.That(t, logs.FilterMessage("button device disconnected").Len(), test.ShouldEqual, 1)

	close(events)
	test.That(t, b.Close(), test.ShouldBeNil)
}

func TestOpenBackButtonMissingDevice(t *testing.T) {
	_, err := OpenBackButton("/nonexistent/input/event0", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "/nonexistent/input/event0")
}
