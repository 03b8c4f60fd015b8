// Package device models logic-analyzer device instances: their channel
// tables, the configuration operations callers apply to them, and the
// driver capability surface backends implement.
package device

import (
	"errors"
	"fmt"

	"github.com/banshee-data/logic.report/internal/logic"
)

// ConfigKey identifies a driver configuration option.
type ConfigKey int

const (
	// ConfKeySamplerate is the acquisition sample rate in Hz (uint64).
	ConfKeySamplerate ConfigKey = iota + 1
	// ConfKeyLimitSamples caps the number of samples a session produces
	// (uint64).
	ConfKeyLimitSamples
	// ConfKeyPattern selects the waveform on pattern-generating drivers
	// (string).
	ConfKeyPattern
)

// String returns the option name used in logs and errors.
func (k ConfigKey) String() string {
	switch k {
	case ConfKeySamplerate:
		return "samplerate"
	case ConfKeyLimitSamples:
		return "limit_samples"
	case ConfKeyPattern:
		return "pattern"
	}
	return fmt.Sprintf("configkey(%d)", int(k))
}

// ChannelSetMask flags which channel fields a ChannelSet call is
// applying to the backend.
type ChannelSetMask uint

const (
	// ChannelSetEnabled signals a change to the channel's Enabled flag.
	ChannelSetEnabled ChannelSetMask = 1 << iota
	// ChannelSetTrigger signals a change to the channel's trigger spec.
	ChannelSetTrigger
)

// Driver is the capability surface a hardware or synthetic backend
// exposes. Implementations must tolerate being asked about options they
// do not support; unsupported ConfigGet/ConfigSet keys return an error
// wrapping logic.ErrArgument.
type Driver interface {
	// Name returns the driver's short identifier, e.g. "virtual".
	Name() string
	// ConfigGet reads a configuration value.
	ConfigGet(key ConfigKey) (any, error)
	// ConfigSet writes a configuration value.
	ConfigSet(key ConfigKey, value any) error
	// ConfigList enumerates the keys the driver supports.
	ConfigList() []ConfigKey
	// ChannelSet pushes changed channel state to the backend. mask says
	// which fields changed. Drivers that keep no per-channel state
	// return nil.
	ChannelSet(dev *Device, ch *logic.Channel, mask ChannelSetMask) error
	// Open prepares the backend for acquisition.
	Open(dev *Device) error
	// Close releases the backend.
	Close(dev *Device) error
}

// Device is one device instance: identity strings, an ordered channel
// table, and an optional driver backend. Data-file devices (replayed
// captures) may carry a driver that only answers config queries.
type Device struct {
	Vendor  string
	Model   string
	Version string

	channels []*logic.Channel
	driver   Driver
	opened   bool
}

// New returns a device instance with no channels and no driver.
func New(vendor, model, version string) *Device {
	return &Device{Vendor: vendor, Model: model, Version: version}
}

// NewWithDriver returns a device instance bound to a driver backend.
func NewWithDriver(vendor, model, version string, drv Driver) *Device {
	d := New(vendor, model, version)
	d.driver = drv
	return d
}

// Driver returns the device's backend, nil when none is attached.
func (d *Device) Driver() Driver {
	if d == nil {
		return nil
	}
	return d.driver
}

// AddChannel appends a channel to the device's table. Channels start
// enabled; index is the bit position the channel occupies in each
// packed sample.
func (d *Device) AddChannel(index int, ctype logic.ChannelType, name string) *logic.Channel {
	ch := &logic.Channel{Index: index, Type: ctype, Enabled: true, Name: name}
	d.channels = append(d.channels, ch)
	return ch
}

// Channels returns the device's channel table in sample-bit order.
// Callers must treat the returned slice as read-only; channel state is
// changed through the SetChannel*/EnableChannel operations.
func (d *Device) Channels() []*logic.Channel {
	if d == nil {
		return nil
	}
	return d.channels
}

// Channel returns the channel with the given index, or nil.
func (d *Device) Channel(index int) *logic.Channel {
	if d == nil {
		return nil
	}
	for _, ch := range d.channels {
		if ch.Index == index {
			return ch
		}
	}
	return nil
}

// SetChannelName renames the channel with the given index.
func (d *Device) SetChannelName(index int, name string) error {
	if d == nil {
		return fmt.Errorf("set channel name: nil device: %w", logic.ErrArgument)
	}
	ch := d.Channel(index)
	if ch == nil {
		return fmt.Errorf("set channel name: no channel %d: %w", index, logic.ErrArgument)
	}
	ch.Name = name
	return nil
}

// EnableChannel sets the enabled state of the channel with the given
// index. When a driver is attached it is notified; if it rejects the
// change as invalid the previous state is restored.
func (d *Device) EnableChannel(index int, enabled bool) error {
	if d == nil {
		return fmt.Errorf("enable channel: nil device: %w", logic.ErrArgument)
	}
	ch := d.Channel(index)
	if ch == nil {
		return fmt.Errorf("enable channel: no channel %d: %w", index, logic.ErrArgument)
	}

	was := ch.Enabled
	ch.Enabled = enabled
	if d.driver != nil {
		if err := d.driver.ChannelSet(d, ch, ChannelSetEnabled); err != nil {
			// The driver never saw an invalid request take effect.
			if errors.Is(err, logic.ErrArgument) {
				ch.Enabled = was
			}
			return fmt.Errorf("enable channel %d: %w", index, err)
		}
	}
	return nil
}

// SetChannelTrigger sets the trigger specification on the channel with
// the given index, with the same driver notification and rollback
// behaviour as EnableChannel.
func (d *Device) SetChannelTrigger(index int, trigger string) error {
	if d == nil {
		return fmt.Errorf("set trigger: nil device: %w", logic.ErrArgument)
	}
	ch := d.Channel(index)
	if ch == nil {
		return fmt.Errorf("set trigger: no channel %d: %w", index, logic.ErrArgument)
	}

	was := ch.Trigger
	ch.Trigger = trigger
	if d.driver != nil {
		if err := d.driver.ChannelSet(d, ch, ChannelSetTrigger); err != nil {
			if errors.Is(err, logic.ErrArgument) {
				ch.Trigger = was
			}
			return fmt.Errorf("set trigger on channel %d: %w", index, err)
		}
	}
	return nil
}

// HasOption reports whether the device's driver supports the given
// configuration key. Devices without a driver support nothing.
func (d *Device) HasOption(key ConfigKey) bool {
	if d == nil || d.driver == nil {
		return false
	}
	for _, k := range d.driver.ConfigList() {
		if k == key {
			return true
		}
	}
	return false
}

// Samplerate returns the device's sample rate when its driver exposes
// one. ok is false for driverless devices and drivers without the
// samplerate option.
func (d *Device) Samplerate() (hz uint64, ok bool) {
	if d == nil || d.driver == nil {
		return 0, false
	}
	v, err := d.driver.ConfigGet(ConfKeySamplerate)
	if err != nil {
		return 0, false
	}
	hz, ok = v.(uint64)
	return hz, ok
}

// Open opens the device through its driver. Opening a device twice, or
// a device without a driver, is an argument error.
func (d *Device) Open() error {
	if d == nil || d.driver == nil {
		return fmt.Errorf("open: no driver: %w", logic.ErrArgument)
	}
	if d.opened {
		return fmt.Errorf("open %s: already open: %w", d.Model, logic.ErrArgument)
	}
	if err := d.driver.Open(d); err != nil {
		return fmt.Errorf("open %s: %w", d.Model, err)
	}
	d.opened = true
	return nil
}

// Close closes the device through its driver.
func (d *Device) Close() error {
	if d == nil || d.driver == nil {
		return fmt.Errorf("close: no driver: %w", logic.ErrArgument)
	}
	if !d.opened {
		return fmt.Errorf("close %s: not open: %w", d.Model, logic.ErrArgument)
	}
	d.opened = false
	if err := d.driver.Close(d); err != nil {
		return fmt.Errorf("close %s: %w", d.Model, err)
	}
	return nil
}
