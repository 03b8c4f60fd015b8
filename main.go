package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/logic.report/internal/db"
	"github.com/banshee-data/logic.report/internal/logic/device"
	"github.com/banshee-data/logic.report/internal/units"
	"github.com/banshee-data/logic.report/internal/version"
)

var (
	demoMode    = flag.Bool("demo", false, "Run a demo acquisition on the virtual driver")
	inPath      = flag.String("in", "", "Replay a recorded capture directory")
	recordPath  = flag.String("record", "", "Record the demo session into a capture directory")
	listMode    = flag.Bool("list", false, "List drivers and output formats")
	capturesCmd = flag.Bool("captures", false, "List catalogued captures")
	showVersion = flag.Bool("version", false, "Print version and exit")

	formatID  = flag.String("format", "hex", "Output format")
	width     = flag.String("width", "", "Samples per line for the hex format")
	outPath   = flag.String("o", "", "Write rendered output to a file instead of stdout")
	channels  = flag.Int("channels", 8, "Virtual channel count")
	samples   = flag.Uint64("n", device.DefaultVirtualLimit, "Sample limit for demo acquisitions")
	rate      = flag.String("rate", "1m", "Demo sample rate in Hz (k/m/g suffixes)")
	pattern   = flag.String("pattern", "counter", "Virtual waveform: counter, walking or random")
	seed      = flag.Int64("seed", 1, "Seed for the random pattern")
	triggerAt = flag.Int64("trigger", -1, "Sample offset to fire a trigger at (-1 for none)")
	dbPath    = flag.String("db", db.DefaultPath, "Path to the capture catalogue database")
)

func main() {
	flag.Parse()

	// The migrate subcommand manages the catalogue schema and handles its
	// own exit codes.
	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbPath)
		return
	}

	switch {
	case *showVersion:
		fmt.Println(version.Banner())
		fmt.Printf("  commit: %s\n  built:  %s\n", version.GitSHA, version.BuildTime)

	case *listMode:
		printFormats(os.Stdout)

	case *capturesCmd:
		if err := runListCaptures(os.Stdout, *dbPath, 0); err != nil {
			log.Fatalf("failed to list captures: %v", err)
		}

	case *inPath != "":
		sink, closeSink, err := openSink(*outPath)
		if err != nil {
			log.Fatalf("failed to open output: %v", err)
		}
		defer closeSink()
		if err := runReplay(sink, *inPath, *formatID, *width); err != nil {
			log.Fatalf("replay failed: %v", err)
		}

	case *demoMode:
		hz, err := units.ParseSizeString(*rate)
		if err != nil {
			log.Fatalf("bad rate: %v", err)
		}
		cfg := demoConfig{
			Channels:  *channels,
			Samples:   *samples,
			RateHz:    hz,
			Pattern:   *pattern,
			Seed:      *seed,
			TriggerAt: *triggerAt,
			Format:    *formatID,
			Param:     *width,
			RecordDir: *recordPath,
		}
		if *recordPath != "" {
			cfg.DBPath = *dbPath
		}
		sink, closeSink, err := openSink(*outPath)
		if err != nil {
			log.Fatalf("failed to open output: %v", err)
		}
		defer closeSink()
		if err := runDemo(sink, cfg); err != nil {
			log.Fatalf("demo failed: %v", err)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// openSink resolves the -o flag: stdout when empty, otherwise a created
// file the caller must close.
func openSink(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close %s: %v", path, err)
		}
	}, nil
}
