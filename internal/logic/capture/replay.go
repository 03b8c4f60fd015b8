package capture

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/device"
)

// Replayer reads a capture directory back as a datafeed stream.
type Replayer struct {
	basePath string
	header   Header
	index    []IndexEntry

	pos        uint64
	headerSent bool
	endSent    bool

	currentChunk int
	chunkData    []byte

	mu sync.Mutex
}

// NewReplayer opens a capture for replay.
func NewReplayer(basePath string) (*Replayer, error) {
	r := &Replayer{
		basePath:     basePath,
		currentChunk: -1,
	}

	headerPath := filepath.Join(basePath, "header.json")
	headerData, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("capture: read header: %w", err)
	}
	if err := json.Unmarshal(headerData, &r.header); err != nil {
		return nil, fmt.Errorf("capture: parse header: %v: %w", err, logic.ErrData)
	}
	for _, ci := range r.header.Channels {
		switch ci.Type {
		case logic.ChannelLogic.String(), logic.ChannelAnalog.String():
		default:
			return nil, fmt.Errorf("capture: unknown channel type %q: %w", ci.Type, logic.ErrData)
		}
	}

	indexPath := filepath.Join(basePath, "index.bin")
	indexFile, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("capture: open index: %w", err)
	}
	defer indexFile.Close()

	r.index = make([]IndexEntry, 0, r.header.TotalRecords)
	for {
		var entry IndexEntry
		if err := binary.Read(indexFile, binary.LittleEndian, &entry.RecordID); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("capture: read index: %v: %w", err, logic.ErrData)
		}
		if err := binary.Read(indexFile, binary.LittleEndian, &entry.SampleOffset); err != nil {
			return nil, fmt.Errorf("capture: read index: %v: %w", err, logic.ErrData)
		}
		if err := binary.Read(indexFile, binary.LittleEndian, &entry.ChunkID); err != nil {
			return nil, fmt.Errorf("capture: read index: %v: %w", err, logic.ErrData)
		}
		if err := binary.Read(indexFile, binary.LittleEndian, &entry.Offset); err != nil {
			return nil, fmt.Errorf("capture: read index: %v: %w", err, logic.ErrData)
		}
		r.index = append(r.index, entry)
	}

	return r, nil
}

// Header returns the capture header.
func (r *Replayer) Header() Header {
	return r.header
}

// TotalRecords returns the number of records in the capture.
func (r *Replayer) TotalRecords() uint64 {
	return uint64(len(r.index))
}

// Device rebuilds a device instance from the capture header. The
// device carries a read-only driver that answers samplerate queries,
// so encoders initialised against it render the same acquisition
// header as a live session.
func (r *Replayer) Device() *device.Device {
	drv := &replayDriver{samplerate: r.header.SamplerateHz}
	dev := device.NewWithDriver(r.header.Device.Vendor, r.header.Device.Model, r.header.Device.Version, drv)
	for _, ci := range r.header.Channels {
		ctype := logic.ChannelLogic
		if ci.Type == logic.ChannelAnalog.String() {
			ctype = logic.ChannelAnalog
		}
		ch := dev.AddChannel(ci.Index, ctype, ci.Name)
		ch.Enabled = ci.Enabled
	}
	return dev
}

// Next returns the next packet of the replayed stream: one header
// packet, then the recorded logic and trigger packets in order, then
// one end packet. After that it returns io.EOF.
func (r *Replayer) Next() (*logic.Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.headerSent {
		r.headerSent = true
		return &logic.Packet{Type: logic.PacketHeader}, nil
	}

	if r.pos >= uint64(len(r.index)) {
		if !r.endSent {
			r.endSent = true
			return logic.NewEndPacket(), nil
		}
		return nil, io.EOF
	}

	entry := r.index[r.pos]
	if int(entry.ChunkID) != r.currentChunk {
		if err := r.loadChunk(int(entry.ChunkID)); err != nil {
			return nil, err
		}
	}

	p, err := r.decodeRecord(entry.Offset)
	if err != nil {
		return nil, err
	}

	r.pos++
	return p, nil
}

// decodeRecord parses the length-prefixed record at the given offset
// in the cached chunk. Offsets and lengths come from disk, so bounds
// are checked in 64-bit arithmetic where 32-bit sums could wrap.
func (r *Replayer) decodeRecord(offset uint32) (*logic.Packet, error) {
	chunkLen := uint64(len(r.chunkData))
	start := uint64(offset)
	if start+4 > chunkLen {
		return nil, fmt.Errorf("capture: invalid record offset %d: %w", offset, logic.ErrData)
	}
	recLen := binary.LittleEndian.Uint32(r.chunkData[start:])
	start += 4

	if recLen < 1 || start+uint64(recLen) > chunkLen {
		return nil, fmt.Errorf("capture: invalid record length %d: %w", recLen, logic.ErrData)
	}
	payload := r.chunkData[start : start+uint64(recLen)]

	switch payload[0] {
	case recordLogic:
		if len(payload) < 5 {
			return nil, fmt.Errorf("capture: truncated logic record: %w", logic.ErrData)
		}
		unitSize := int(binary.LittleEndian.Uint32(payload[1:5]))
		// Copy out of the chunk cache so the packet stays valid across
		// chunk loads.
		data := append([]byte(nil), payload[5:]...)
		p := logic.NewLogicPacket(data, unitSize)
		if err := p.Logic.Validate(); err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		return p, nil
	case recordTrigger:
		return logic.NewTriggerPacket(), nil
	}
	return nil, fmt.Errorf("capture: unknown record kind %d: %w", payload[0], logic.ErrData)
}

// loadChunk loads a chunk file into memory.
func (r *Replayer) loadChunk(chunkIdx int) error {
	chunkPath := filepath.Join(r.basePath, "records", fmt.Sprintf("chunk_%04d.bin", chunkIdx))
	data, err := os.ReadFile(chunkPath)
	if err != nil {
		return fmt.Errorf("capture: read chunk: %w", err)
	}

	r.chunkData = data
	r.currentChunk = chunkIdx
	return nil
}

// Seek positions the replay at a specific record by index. The header
// packet is not re-sent; a consumed end packet is.
func (r *Replayer) Seek(recordIdx uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if recordIdx >= uint64(len(r.index)) {
		return fmt.Errorf("capture: record index out of range: %d >= %d: %w",
			recordIdx, len(r.index), logic.ErrArgument)
	}

	r.pos = recordIdx
	r.endSent = false
	return nil
}

// SeekToSample positions the replay at the first record at or past the
// given sample offset, or at the last record when the offset is beyond
// the capture.
func (r *Replayer) SeekToSample(sampleOffset uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.index) == 0 {
		return fmt.Errorf("capture: empty capture: %w", logic.ErrArgument)
	}

	for i, entry := range r.index {
		if entry.SampleOffset >= int64(sampleOffset) {
			r.pos = uint64(i)
			r.endSent = false
			return nil
		}
	}

	r.pos = uint64(len(r.index) - 1)
	r.endSent = false
	return nil
}

// replayDriver answers config queries from a recorded header. All
// mutation is rejected; replayed acquisitions cannot be reconfigured.
type replayDriver struct {
	samplerate uint64
}

func (d *replayDriver) Name() string { return "replay" }

func (d *replayDriver) ConfigGet(key device.ConfigKey) (any, error) {
	if key == device.ConfKeySamplerate && d.samplerate > 0 {
		return d.samplerate, nil
	}
	return nil, fmt.Errorf("replay: config %s not available: %w", key, logic.ErrArgument)
}

func (d *replayDriver) ConfigSet(key device.ConfigKey, value any) error {
	return fmt.Errorf("replay: config %s is read-only: %w", key, logic.ErrArgument)
}

func (d *replayDriver) ConfigList() []device.ConfigKey {
	if d.samplerate > 0 {
		return []device.ConfigKey{device.ConfKeySamplerate}
	}
	return nil
}

func (d *replayDriver) ChannelSet(dev *device.Device, ch *logic.Channel, mask device.ChannelSetMask) error {
	// Channel naming and selection stay editable on replayed devices.
	return nil
}

func (d *replayDriver) Open(dev *device.Device) error  { return nil }
func (d *replayDriver) Close(dev *device.Device) error { return nil }
