// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"fmt"
	"testing"

	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/device"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewLogicDevice creates a driverless device with n logic channels
// named D0..Dn-1.
func NewLogicDevice(n int) *device.Device {
	dev := device.New("banshee", "test-la", "1")
	for i := 0; i < n; i++ {
		dev.AddChannel(i, logic.ChannelLogic, fmt.Sprintf("D%d", i))
	}
	return dev
}

// Bytes returns n copies of b.
func Bytes(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// CountingBytes returns n bytes holding their own index, truncated to
// eight bits.
func CountingBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

// StreamPackets runs a full acquisition session on dev's driver and
// returns the emitted packets.
func StreamPackets(t *testing.T, dev *device.Device, batchSamples int, triggerAt int64) []*logic.Packet {
	t.Helper()

	drv, ok := dev.Driver().(device.Streamer)
	if !ok {
		t.Fatalf("driver %T cannot stream", dev.Driver())
	}

	var packets []*logic.Packet
	err := drv.Stream(dev, batchSamples, triggerAt, func(p *logic.Packet) error {
		packets = append(packets, p)
		return nil
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	return packets
}
