// Command gen-lcap generates sample .lcap captures for testing replay.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/logic.report/internal/logic/capture"
	"github.com/banshee-data/logic.report/internal/logic/device"
	"github.com/banshee-data/logic.report/internal/units"
)

func main() {
	output := flag.String("o", "sample.lcap", "output directory")
	channels := flag.Int("channels", 8, "number of logic channels")
	samples := flag.Uint64("n", 4096, "number of samples")
	rate := flag.String("rate", "1m", "sample rate in Hz (k/m/g suffixes)")
	pattern := flag.String("pattern", "counter", "waveform: counter, walking or random")
	seed := flag.Int64("seed", 1, "seed for the random pattern")
	trigger := flag.Int64("trigger", -1, "sample offset to fire a trigger at (-1 for none)")
	flag.Parse()

	hz, err := units.ParseSizeString(*rate)
	if err != nil {
		log.Fatalf("bad rate: %v", err)
	}

	dev := device.NewVirtualDevice(*channels)
	drv := dev.Driver().(*device.VirtualDriver)
	if err := drv.ConfigSet(device.ConfKeySamplerate, hz); err != nil {
		log.Fatalf("bad rate: %v", err)
	}
	if err := drv.ConfigSet(device.ConfKeyLimitSamples, *samples); err != nil {
		log.Fatalf("bad sample limit: %v", err)
	}
	if err := drv.ConfigSet(device.ConfKeyPattern, *pattern); err != nil {
		log.Fatalf("bad pattern: %v", err)
	}
	drv.SetSeed(*seed)

	rec, err := capture.NewWriter(*output, dev)
	if err != nil {
		log.Fatalf("failed to create capture: %v", err)
	}
	if err := drv.Stream(dev, device.DefaultBatchSamples, *trigger, rec.WritePacket); err != nil {
		log.Fatalf("stream failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		log.Fatalf("failed to finalise capture: %v", err)
	}
	log.Printf("✓ Created: %s (%s, %d records)",
		rec.Path(), units.SampleCount(rec.SampleCount()), rec.RecordCount())
}
