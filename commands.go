package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/banshee-data/logic.report/internal/db"
	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/capture"
	"github.com/banshee-data/logic.report/internal/logic/device"
	"github.com/banshee-data/logic.report/internal/logic/output"
	"github.com/banshee-data/logic.report/internal/units"
)

// demoConfig collects the knobs for a virtual acquisition session.
type demoConfig struct {
	Channels  int
	Samples   uint64
	RateHz    uint64
	Pattern   string
	Seed      int64
	TriggerAt int64
	Format    string
	Param     string
	RecordDir string // record the raw packet stream here when non-empty
	DBPath    string // catalogue the recording here when non-empty
}

// runDemo streams a virtual acquisition through an output format and
// writes the rendered stream to w. With RecordDir set the raw packet
// stream is recorded alongside, and with DBPath set the recording is
// added to the capture catalogue.
func runDemo(w io.Writer, cfg demoConfig) error {
	dev := device.NewVirtualDevice(cfg.Channels)
	drv := dev.Driver().(*device.VirtualDriver)

	if err := drv.ConfigSet(device.ConfKeySamplerate, cfg.RateHz); err != nil {
		return err
	}
	if err := drv.ConfigSet(device.ConfKeyLimitSamples, cfg.Samples); err != nil {
		return err
	}
	if err := drv.ConfigSet(device.ConfKeyPattern, cfg.Pattern); err != nil {
		return err
	}
	drv.SetSeed(cfg.Seed)

	if err := dev.Open(); err != nil {
		return err
	}
	defer dev.Close()

	out, err := output.New(cfg.Format, dev, cfg.Param)
	if err != nil {
		return err
	}

	var rec *capture.Writer
	if cfg.RecordDir != "" {
		rec, err = capture.NewWriter(cfg.RecordDir, dev)
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}
	}

	err = drv.Stream(dev, device.DefaultBatchSamples, cfg.TriggerAt, func(p *logic.Packet) error {
		if rec != nil {
			if err := rec.WritePacket(p); err != nil {
				return err
			}
		}
		chunk, err := out.Send(p)
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if rec != nil {
			rec.Close()
		}
		return err
	}

	if rec == nil {
		return nil
	}
	if err := rec.Close(); err != nil {
		return fmt.Errorf("finalise recording: %w", err)
	}
	log.Printf("✓ Recorded %s (%s, %d records)",
		rec.Path(), units.SampleCount(rec.SampleCount()), rec.RecordCount())

	if cfg.DBPath == "" {
		return nil
	}
	return catalogueCapture(cfg.DBPath, rec)
}

// catalogueCapture indexes a finished recording in the capture
// catalogue.
func catalogueCapture(dbPath string, rec *capture.Writer) error {
	d, err := db.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer d.Close()

	hdr := rec.Header()
	entry := &db.CaptureRecord{
		ID:           hdr.CaptureID,
		Path:         rec.Path(),
		DeviceVendor: hdr.Device.Vendor,
		DeviceModel:  hdr.Device.Model,
		SamplerateHz: hdr.SamplerateHz,
		UnitSize:     hdr.UnitSize,
		ChannelCount: len(hdr.Channels),
		TotalSamples: hdr.TotalSamples,
		TotalRecords: hdr.TotalRecords,
		TriggerCount: hdr.TriggerCount,
		CreatedNs:    hdr.CreatedNs,
	}
	if err := d.InsertCapture(entry); err != nil {
		return fmt.Errorf("catalogue recording: %w", err)
	}
	log.Printf("✓ Catalogued capture %s", entry.ID)
	return nil
}

// runReplay renders a recorded capture through an output format,
// writing the rendered stream to w.
func runReplay(w io.Writer, dir, formatID, param string) error {
	r, err := capture.NewReplayer(dir)
	if err != nil {
		return err
	}
	out, err := output.New(formatID, r.Device(), param)
	if err != nil {
		return err
	}

	for {
		p, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		chunk, err := out.Send(p)
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		}
	}
}

// runListCaptures prints the catalogued captures, newest first. A limit
// of zero lists everything.
func runListCaptures(w io.Writer, dbPath string, limit int) error {
	d, err := db.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer d.Close()

	recs, err := d.ListCaptures(limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "no captures catalogued")
		return nil
	}
	for _, rec := range recs {
		created := time.Unix(0, rec.CreatedNs).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, "%s  %s  %2d ch  %8s  %8s  %s\n",
			rec.ID, created, rec.ChannelCount,
			units.Samplerate(rec.SamplerateHz), units.SampleCount(rec.TotalSamples),
			rec.Path)
	}
	return nil
}

// printFormats lists the registered output formats and device drivers.
func printFormats(w io.Writer) {
	fmt.Fprintln(w, "Output formats:")
	for _, f := range output.Formats() {
		fmt.Fprintf(w, "  %-8s %s\n", f.ID(), f.Description())
	}
	fmt.Fprintln(w, "Drivers:")
	for _, name := range device.DriverNames() {
		fmt.Fprintf(w, "  %s\n", name)
	}
}
