// Package output converts datafeed packets into byte chunks in a
// selectable, registry-driven text format.
package output

import (
	"fmt"
	"sync"

	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/device"
)

// Encoder turns datafeed packets into output chunks. Encoders are owned
// by a single goroutine: Receive is synchronous, keeps no reference to
// the packet after returning, and returns the chunk the packet
// completed, if any. A nil or empty chunk means the packet produced no
// output.
type Encoder interface {
	Receive(p *logic.Packet) ([]byte, error)
}

// Format describes one registered output format and builds encoders
// for it.
type Format interface {
	// ID returns the registry key, e.g. "hex".
	ID() string
	// Description returns a one-line human description.
	Description() string
	// NewEncoder builds an encoder bound to dev. param carries the
	// format's option string; "" selects defaults.
	NewEncoder(dev *device.Device, param string) (Encoder, error)
}

var (
	formatsMu sync.RWMutex
	formats   = make(map[string]Format)
	formatIDs []string
)

// Register makes a format available to Lookup and New. It is intended
// to be called from init functions; registering the same ID twice
// panics.
func Register(f Format) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	if f == nil {
		panic("output: Register format is nil")
	}
	if _, dup := formats[f.ID()]; dup {
		panic("output: Register called twice for format " + f.ID())
	}
	formats[f.ID()] = f
	formatIDs = append(formatIDs, f.ID())
}

// Lookup returns the format with the given ID.
func Lookup(id string) (Format, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	f, ok := formats[id]
	return f, ok
}

// Formats returns the registered formats in registration order.
func Formats() []Format {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	out := make([]Format, 0, len(formatIDs))
	for _, id := range formatIDs {
		out = append(out, formats[id])
	}
	return out
}

// LogicChannels selects the channels that participate in logic output:
// the ordered sublist of dev's channels that are logic-type and
// enabled, copied so the selection is independent of later changes to
// the device. A nil device is an argument error; an empty selection is
// not.
func LogicChannels(dev *device.Device) ([]logic.Channel, error) {
	if dev == nil {
		return nil, fmt.Errorf("output: nil device: %w", logic.ErrArgument)
	}
	var selected []logic.Channel
	for _, ch := range dev.Channels() {
		if ch.Type != logic.ChannelLogic || !ch.Enabled {
			continue
		}
		selected = append(selected, *ch)
	}
	return selected, nil
}

// Output binds an encoder for one format to one device, the handle the
// host pipeline feeds packets through.
type Output struct {
	format Format
	enc    Encoder
}

// New builds an Output for the named format. An unknown format ID is an
// argument error.
func New(formatID string, dev *device.Device, param string) (*Output, error) {
	f, ok := Lookup(formatID)
	if !ok {
		return nil, fmt.Errorf("output: unknown format %q: %w", formatID, logic.ErrArgument)
	}
	enc, err := f.NewEncoder(dev, param)
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", f.ID(), err)
	}
	return &Output{format: f, enc: enc}, nil
}

// Format returns the bound format descriptor.
func (o *Output) Format() Format {
	if o == nil {
		return nil
	}
	return o.format
}

// Send forwards one packet to the encoder and returns the chunk it
// produced, if any.
func (o *Output) Send(p *logic.Packet) ([]byte, error) {
	if o == nil || o.enc == nil {
		return nil, fmt.Errorf("output: not initialised: %w", logic.ErrArgument)
	}
	return o.enc.Receive(p)
}
