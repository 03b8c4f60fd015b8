package device

import (
	"fmt"
	"math/rand"

	"github.com/banshee-data/logic.report/internal/logic"
)

// Virtual driver defaults.
const (
	DefaultVirtualRate  uint64 = 1_000_000
	DefaultVirtualLimit uint64 = 1_024
	DefaultBatchSamples        = 256
)

// Pattern identifies a waveform the virtual driver generates.
type Pattern int

const (
	// PatternCounter packs an incrementing sample counter, so adjacent
	// channels toggle at halving rates.
	PatternCounter Pattern = iota
	// PatternWalking walks a single high bit across the channels.
	PatternWalking
	// PatternRandom draws every sample byte from a seeded generator.
	PatternRandom
)

// String returns the pattern name accepted by ParsePattern.
func (p Pattern) String() string {
	switch p {
	case PatternCounter:
		return "counter"
	case PatternWalking:
		return "walking"
	case PatternRandom:
		return "random"
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

// ParsePattern maps a pattern name from a CLI flag to a Pattern.
func ParsePattern(s string) (Pattern, error) {
	switch s {
	case "counter":
		return PatternCounter, nil
	case "walking":
		return PatternWalking, nil
	case "random":
		return PatternRandom, nil
	}
	return 0, fmt.Errorf("unknown pattern %q: %w", s, logic.ErrArgument)
}

// Streamer is implemented by drivers that can run a self-clocked
// acquisition session, producing the packet sequence a hardware backend
// would deliver.
type Streamer interface {
	Stream(dev *Device, batchSamples int, triggerAt int64, emit func(*logic.Packet) error) error
}

// VirtualDriver generates deterministic logic patterns in place of real
// hardware. It backs demo sessions, capture generation, and tests.
type VirtualDriver struct {
	samplerate uint64
	limit      uint64
	pattern    Pattern
	seed       int64
}

func init() {
	RegisterDriver("virtual", func() Driver { return NewVirtualDriver() })
}

// NewVirtualDriver returns a virtual driver with its defaults: 1 MHz,
// 1024 samples, counter pattern.
func NewVirtualDriver() *VirtualDriver {
	return &VirtualDriver{
		samplerate: DefaultVirtualRate,
		limit:      DefaultVirtualLimit,
		pattern:    PatternCounter,
		seed:       1,
	}
}

// Name implements Driver.
func (v *VirtualDriver) Name() string { return "virtual" }

// ConfigGet implements Driver.
func (v *VirtualDriver) ConfigGet(key ConfigKey) (any, error) {
	switch key {
	case ConfKeySamplerate:
		return v.samplerate, nil
	case ConfKeyLimitSamples:
		return v.limit, nil
	case ConfKeyPattern:
		return v.pattern.String(), nil
	}
	return nil, fmt.Errorf("virtual: unsupported option %s: %w", key, logic.ErrArgument)
}

// ConfigSet implements Driver. Pattern accepts either a Pattern or its
// string name.
func (v *VirtualDriver) ConfigSet(key ConfigKey, value any) error {
	switch key {
	case ConfKeySamplerate:
		hz, ok := value.(uint64)
		if !ok || hz == 0 {
			return fmt.Errorf("virtual: samplerate %v: %w", value, logic.ErrArgument)
		}
		v.samplerate = hz
		return nil
	case ConfKeyLimitSamples:
		n, ok := value.(uint64)
		if !ok {
			return fmt.Errorf("virtual: limit_samples %v: %w", value, logic.ErrArgument)
		}
		v.limit = n
		return nil
	case ConfKeyPattern:
		switch val := value.(type) {
		case Pattern:
			v.pattern = val
			return nil
		case string:
			p, err := ParsePattern(val)
			if err != nil {
				return err
			}
			v.pattern = p
			return nil
		}
		return fmt.Errorf("virtual: pattern %v: %w", value, logic.ErrArgument)
	}
	return fmt.Errorf("virtual: unsupported option %s: %w", key, logic.ErrArgument)
}

// ConfigList implements Driver.
func (v *VirtualDriver) ConfigList() []ConfigKey {
	return []ConfigKey{ConfKeySamplerate, ConfKeyLimitSamples, ConfKeyPattern}
}

// ChannelSet implements Driver. Patterns are computed per sample, so
// there is no backend state to push.
func (v *VirtualDriver) ChannelSet(dev *Device, ch *logic.Channel, mask ChannelSetMask) error {
	if ch == nil {
		return fmt.Errorf("virtual: nil channel: %w", logic.ErrArgument)
	}
	return nil
}

// Open implements Driver.
func (v *VirtualDriver) Open(dev *Device) error { return nil }

// Close implements Driver.
func (v *VirtualDriver) Close(dev *Device) error { return nil }

// SetSeed fixes the random pattern's seed so runs are reproducible.
func (v *VirtualDriver) SetSeed(seed int64) { v.seed = seed }

// NewVirtualDevice returns a device with n logic channels named D0..Dn-1
// backed by a fresh VirtualDriver.
func NewVirtualDevice(channels int) *Device {
	dev := NewWithDriver("banshee", "virtual-la", "1", NewVirtualDriver())
	for i := 0; i < channels; i++ {
		dev.AddChannel(i, logic.ChannelLogic, fmt.Sprintf("D%d", i))
	}
	return dev
}

// Stream implements Streamer: a header packet, the configured number of
// samples in batches of up to batchSamples, an optional trigger marker
// before sample triggerAt (-1 for none), and an end packet. A non-nil
// error from emit aborts the session. Output is deterministic for a
// given seed and configuration.
func (v *VirtualDriver) Stream(dev *Device, batchSamples int, triggerAt int64, emit func(*logic.Packet) error) error {
	if dev == nil {
		return fmt.Errorf("virtual stream: nil device: %w", logic.ErrArgument)
	}
	if batchSamples < 1 {
		return fmt.Errorf("virtual stream: batch size %d: %w", batchSamples, logic.ErrArgument)
	}

	nchannels := len(dev.Channels())
	unit := (nchannels + 7) / 8
	if unit == 0 {
		unit = 1
	}
	rng := rand.New(rand.NewSource(v.seed))

	if err := emit(&logic.Packet{Type: logic.PacketHeader}); err != nil {
		return fmt.Errorf("virtual stream: %w", err)
	}

	var done uint64
	for done < v.limit {
		n := uint64(batchSamples)
		if v.limit-done < n {
			n = v.limit - done
		}
		// Split batches at the trigger point so the marker lands between
		// the right samples. A trigger beyond the sample limit never fires.
		if triggerAt >= 0 && uint64(triggerAt) >= done && uint64(triggerAt) < done+n {
			n = uint64(triggerAt) - done
			if n == 0 {
				if err := emit(logic.NewTriggerPacket()); err != nil {
					return fmt.Errorf("virtual stream: %w", err)
				}
				triggerAt = -1
				continue
			}
		}

		data := make([]byte, int(n)*unit)
		for s := uint64(0); s < n; s++ {
			v.fillSample(data[int(s)*unit:int(s+1)*unit], done+s, nchannels, rng)
		}
		if err := emit(logic.NewLogicPacket(data, unit)); err != nil {
			return fmt.Errorf("virtual stream: %w", err)
		}
		done += n
	}

	if err := emit(logic.NewEndPacket()); err != nil {
		return fmt.Errorf("virtual stream: %w", err)
	}
	return nil
}

// fillSample writes one packed sample. buf arrives zeroed.
func (v *VirtualDriver) fillSample(buf []byte, sample uint64, nchannels int, rng *rand.Rand) {
	switch v.pattern {
	case PatternCounter:
		for j := range buf {
			buf[j] = byte(sample >> (8 * j))
		}
	case PatternWalking:
		if nchannels > 0 {
			bit := int(sample % uint64(nchannels))
			buf[bit/8] |= 1 << (bit % 8)
		}
	case PatternRandom:
		for j := range buf {
			buf[j] = byte(rng.Intn(256))
		}
	}
}
