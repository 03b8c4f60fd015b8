// Package capture provides recording and replay of logic datafeed
// streams. A capture is a directory holding a JSON header, chunked
// record files and a binary seek index.
package capture

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/device"
	"github.com/banshee-data/logic.report/internal/timeutil"
)

// FileExtension is the conventional suffix for capture directories.
const FileExtension = ".lcap"

// RecordsPerChunk is the number of records per chunk file.
const RecordsPerChunk = 1000

// Record kinds as stored on disk, one byte ahead of each record body.
const (
	recordLogic   = 1
	recordTrigger = 2
)

// Header contains metadata about a recorded capture.
type Header struct {
	CaptureID string `json:"capture_id"`
	Version   string `json:"version"`
	CreatedNs int64  `json:"created_ns"`
	Device    struct {
		Vendor  string `json:"vendor"`
		Model   string `json:"model"`
		Version string `json:"version"`
	} `json:"device"`
	SamplerateHz uint64        `json:"samplerate_hz"`
	UnitSize     int           `json:"unit_size"`
	TotalSamples uint64        `json:"total_samples"`
	TotalRecords uint64        `json:"total_records"`
	TriggerCount uint64        `json:"trigger_count"`
	Channels     []ChannelInfo `json:"channels"`
}

// ChannelInfo is one channel table entry persisted with a capture.
type ChannelInfo struct {
	Index   int    `json:"index"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// IndexEntry is an entry in the seek index. SampleOffset is the number
// of samples recorded before this record.
type IndexEntry struct {
	RecordID     uint64
	SampleOffset int64
	ChunkID      uint32
	Offset       uint32
}

// Writer records a datafeed stream into a capture directory.
type Writer struct {
	basePath string
	clock    timeutil.Clock

	header       Header
	index        []IndexEntry
	currentChunk int
	chunkFile    *os.File
	chunkOffset  uint32

	recordCount  uint64
	sampleCount  uint64
	triggerCount uint64

	mu     sync.Mutex
	closed bool
}

// NewWriter creates a Writer that records dev's stream into the given
// directory. If basePath is empty, a timestamped directory is created
// in /tmp.
func NewWriter(basePath string, dev *device.Device) (*Writer, error) {
	return NewWriterWithClock(basePath, dev, timeutil.RealClock{})
}

// NewWriterWithClock is NewWriter with an injected clock.
func NewWriterWithClock(basePath string, dev *device.Device, clock timeutil.Clock) (*Writer, error) {
	if dev == nil {
		return nil, fmt.Errorf("capture: nil device: %w", logic.ErrArgument)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), fmt.Sprintf("capture_%d%s", clock.Now().Unix(), FileExtension))
	}

	if err := os.MkdirAll(filepath.Join(basePath, "records"), 0755); err != nil {
		return nil, fmt.Errorf("capture: create directory: %w", err)
	}

	w := &Writer{
		basePath:     basePath,
		clock:        clock,
		currentChunk: -1,
		index:        make([]IndexEntry, 0),
		header: Header{
			CaptureID: uuid.New().String(),
			Version:   "1.0",
			CreatedNs: clock.Now().UnixNano(),
		},
	}

	w.header.Device.Vendor = dev.Vendor
	w.header.Device.Model = dev.Model
	w.header.Device.Version = dev.Version
	if rate, ok := dev.Samplerate(); ok {
		w.header.SamplerateHz = rate
	}

	channels := dev.Channels()
	w.header.UnitSize = (len(channels) + 7) / 8
	if w.header.UnitSize < 1 {
		w.header.UnitSize = 1
	}
	for _, ch := range channels {
		w.header.Channels = append(w.header.Channels, ChannelInfo{
			Index:   ch.Index,
			Type:    ch.Type.String(),
			Name:    ch.Name,
			Enabled: ch.Enabled,
		})
	}

	return w, nil
}

// WritePacket appends one datafeed packet to the capture. Logic and
// trigger packets become records; header, meta and end packets carry
// nothing worth persisting and are ignored.
func (w *Writer) WritePacket(p *logic.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("capture: writer is closed: %w", logic.ErrArgument)
	}
	if p == nil {
		return fmt.Errorf("capture: nil packet: %w", logic.ErrArgument)
	}

	var payload []byte
	var samples uint64
	switch p.Type {
	case logic.PacketLogic:
		if err := p.Logic.Validate(); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		payload = make([]byte, 5+len(p.Logic.Data))
		payload[0] = recordLogic
		binary.LittleEndian.PutUint32(payload[1:5], uint32(p.Logic.UnitSize))
		copy(payload[5:], p.Logic.Data)
		samples = uint64(p.Logic.Samples())
	case logic.PacketTrigger:
		payload = []byte{recordTrigger}
	default:
		return nil
	}

	chunkIdx := int(w.recordCount / RecordsPerChunk)
	if chunkIdx != w.currentChunk {
		if err := w.rotateChunk(chunkIdx); err != nil {
			return err
		}
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
	if _, err := w.chunkFile.Write(lenBuf); err != nil {
		return fmt.Errorf("capture: write record length: %w", err)
	}
	if _, err := w.chunkFile.Write(payload); err != nil {
		return fmt.Errorf("capture: write record: %w", err)
	}

	w.index = append(w.index, IndexEntry{
		RecordID:     w.recordCount,
		SampleOffset: int64(w.sampleCount),
		ChunkID:      uint32(chunkIdx),
		Offset:       w.chunkOffset,
	})

	w.chunkOffset += uint32(4 + len(payload))
	w.recordCount++
	w.sampleCount += samples
	if p.Type == logic.PacketTrigger {
		w.triggerCount++
	}

	return nil
}

// rotateChunk closes the current chunk and opens a new one.
func (w *Writer) rotateChunk(chunkIdx int) error {
	if w.chunkFile != nil {
		if err := w.chunkFile.Close(); err != nil {
			return err
		}
	}

	chunkPath := filepath.Join(w.basePath, "records", fmt.Sprintf("chunk_%04d.bin", chunkIdx))
	f, err := os.Create(chunkPath)
	if err != nil {
		return fmt.Errorf("capture: create chunk file: %w", err)
	}

	w.chunkFile = f
	w.currentChunk = chunkIdx
	w.chunkOffset = 0

	return nil
}

// Close finalises the capture and writes the header and index.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.chunkFile != nil {
		w.chunkFile.Close()
	}

	w.header.TotalSamples = w.sampleCount
	w.header.TotalRecords = w.recordCount
	w.header.TriggerCount = w.triggerCount

	headerPath := filepath.Join(w.basePath, "header.json")
	headerData, err := json.MarshalIndent(w.header, "", "  ")
	if err != nil {
		return fmt.Errorf("capture: marshal header: %w", err)
	}
	if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
		return fmt.Errorf("capture: write header: %w", err)
	}

	indexPath := filepath.Join(w.basePath, "index.bin")
	indexFile, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("capture: create index file: %w", err)
	}
	defer indexFile.Close()

	for _, entry := range w.index {
		if err := binary.Write(indexFile, binary.LittleEndian, entry.RecordID); err != nil {
			return err
		}
		if err := binary.Write(indexFile, binary.LittleEndian, entry.SampleOffset); err != nil {
			return err
		}
		if err := binary.Write(indexFile, binary.LittleEndian, entry.ChunkID); err != nil {
			return err
		}
		if err := binary.Write(indexFile, binary.LittleEndian, entry.Offset); err != nil {
			return err
		}
	}

	return nil
}

// Path returns the base path of the capture.
func (w *Writer) Path() string {
	return w.basePath
}

// Header returns the capture metadata as recorded so far. The totals
// are only final after Close.
func (w *Writer) Header() Header {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := w.header
	h.TotalSamples = w.sampleCount
	h.TotalRecords = w.recordCount
	h.TriggerCount = w.triggerCount
	return h
}

// RecordCount returns the number of records written.
func (w *Writer) RecordCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recordCount
}

// SampleCount returns the number of samples written.
func (w *Writer) SampleCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sampleCount
}
