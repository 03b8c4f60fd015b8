package output

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/logic.report/internal/logic"
	"github.com/banshee-data/logic.report/internal/logic/device"
	"github.com/banshee-data/logic.report/internal/units"
	"github.com/banshee-data/logic.report/internal/version"
)

// DefaultSamplesPerLine is the line width used when the format option
// is left empty.
const DefaultSamplesPerLine = 192

func init() {
	Register(hexFormat{})
}

type hexFormat struct{}

func (hexFormat) ID() string          { return "hex" }
func (hexFormat) Description() string { return "Hexadecimal digits" }

func (hexFormat) NewEncoder(dev *device.Device, param string) (Encoder, error) {
	return newHexEncoder(dev, param)
}

// hexChannel is the per-channel encoding state: the channel's bit
// position, its line buffer holding the row in progress, and a one-byte
// accumulator collecting up to eight samples.
type hexChannel struct {
	index int
	name  string
	line  []byte
	buf   byte
}

// hexEncoder renders packed logic samples as one row of two-digit hex
// cells per channel, eight samples per cell, wrapping every perLine
// samples. Rows carry a "<name>:" prefix; a pending trigger is drawn as
// a caret line under the flushed rows.
type hexEncoder struct {
	channels []hexChannel
	header   []byte // banner block, handed over with the first logic chunk
	perLine  int
	count    int // samples accumulated toward the current line
	trigger  int // in-line sample offset of the pending trigger, -1 when none
	done     bool
}

func newHexEncoder(dev *device.Device, param string) (*hexEncoder, error) {
	if dev == nil {
		return nil, fmt.Errorf("hex: nil device: %w", logic.ErrArgument)
	}

	perLine := DefaultSamplesPerLine
	if param != "" {
		n, err := strconv.Atoi(param)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("hex: samples per line %q: %w", param, logic.ErrArgument)
		}
		perLine = n
	}

	selected, err := LogicChannels(dev)
	if err != nil {
		return nil, err
	}

	enc := &hexEncoder{
		channels: make([]hexChannel, 0, len(selected)),
		perLine:  perLine,
		trigger:  -1,
	}
	for _, ch := range selected {
		enc.channels = append(enc.channels, hexChannel{
			index: ch.Index,
			name:  ch.Name,
			line:  []byte(ch.Name + ":"),
		})
	}

	header := version.Banner() + "\n"
	if rate, ok := dev.Samplerate(); ok {
		header += fmt.Sprintf("Acquisition with %d/%d channels at %s\n",
			len(enc.channels), len(dev.Channels()), units.Samplerate(rate))
	}
	enc.header = []byte(header)

	return enc, nil
}

// Receive implements Encoder.
func (e *hexEncoder) Receive(p *logic.Packet) ([]byte, error) {
	if e == nil || e.perLine == 0 {
		return nil, fmt.Errorf("hex: encoder not initialised: %w", logic.ErrArgument)
	}
	if p == nil {
		return nil, fmt.Errorf("hex: nil packet: %w", logic.ErrArgument)
	}
	if e.done {
		return nil, fmt.Errorf("hex: stream already ended: %w", logic.ErrArgument)
	}

	switch p.Type {
	case logic.PacketTrigger:
		// Only the most recent trigger before a flush is rendered; an
		// earlier pending offset in the same line is overwritten.
		e.trigger = e.count
		return nil, nil
	case logic.PacketLogic:
		return e.receiveLogic(p.Logic)
	case logic.PacketEnd:
		e.done = true
		return e.flushPartial(), nil
	}
	// Header, meta and unrecognised packets carry nothing for this format.
	return nil, nil
}

func (e *hexEncoder) receiveLogic(l *logic.LogicPayload) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("hex: %w", err)
	}

	// The header rides along with the first logic chunk, even when that
	// packet completes no line.
	var out []byte
	if e.header != nil {
		out = e.header
		e.header = nil
	}

	for off := 0; off < len(l.Data); off += l.UnitSize {
		sample := l.Data[off : off+l.UnitSize]
		e.count++
		for j := range e.channels {
			ch := &e.channels[j]

			ch.buf <<= 1
			if idx := ch.index; idx/8 < len(sample) && sample[idx/8]&(1<<(idx%8)) != 0 {
				ch.buf |= 1
			}

			// A cell holds eight samples: two hex digits and a space.
			if e.count&7 == 0 {
				ch.line = fmt.Appendf(ch.line, "%02x ", ch.buf)
				ch.buf = 0
			}
		}

		if e.count == e.perLine {
			for j := range e.channels {
				out = append(out, e.channels[j].line...)
				out = append(out, '\n')
			}
			if e.trigger > -1 && len(e.channels) > 0 {
				// Each rendered byte is three columns wide, so the caret
				// column is offset + offset/8. Keep this coupled to the
				// cell layout above.
				offset := e.trigger + e.trigger/8
				out = fmt.Appendf(out, "T:%*s^ %d\n", offset, "", e.trigger)
				e.trigger = -1
			}
			for j := range e.channels {
				ch := &e.channels[j]
				ch.line = append(ch.line[:0], ch.name...)
				ch.line = append(ch.line, ':')
			}
			e.count = 0
		}
	}

	return out, nil
}

// flushPartial renders whatever is buffered at end of stream: channels
// with a partial cell left-align it by shifting in zero bits, then every
// line is emitted as-is. No caret is drawn for a trigger still pending.
func (e *hexEncoder) flushPartial() []byte {
	if e.count == 0 {
		return nil
	}
	var out []byte
	for j := range e.channels {
		ch := &e.channels[j]
		if e.count&7 != 0 {
			ch.buf <<= 8 - (e.count & 7)
			ch.line = fmt.Appendf(ch.line, "%02x ", ch.buf)
		}
		out = append(out, ch.line...)
		out = append(out, '\n')
	}
	return out
}
