// Package logic defines the shared data model for logic-analyzer
// captures: channels, datafeed packets, and the error kinds device and
// output operations report.
package logic

import "fmt"

// ChannelType identifies the kind of signal a channel carries.
type ChannelType int

const (
	// ChannelLogic is a digital channel sampled one bit per sample.
	ChannelLogic ChannelType = iota
	// ChannelAnalog is an analog channel. Analog data does not flow
	// through the hex output path, but mixed-signal devices list both
	// kinds in one channel table.
	ChannelAnalog
)

// String returns the lowercase channel type name.
func (t ChannelType) String() string {
	switch t {
	case ChannelLogic:
		return "logic"
	case ChannelAnalog:
		return "analog"
	}
	return fmt.Sprintf("channeltype(%d)", int(t))
}

// Channel describes one input channel on a device.
//
// Index is the channel's bit position within a packed sample: bit
// (Index % 8) of byte (Index / 8) in each sample unit. The index is
// fixed for the lifetime of a capture session; renaming, enabling or
// disabling a channel never moves it.
type Channel struct {
	Index   int
	Type    ChannelType
	Enabled bool
	Name    string

	// Trigger is the channel's trigger specification ("1", "0", "r",
	// "f", "e" or a combination), empty when none is set.
	Trigger string
}
