package logic

import "fmt"

// PacketType discriminates datafeed packets flowing from an acquisition
// source to output encoders.
type PacketType int

const (
	// PacketHeader opens a stream. It carries no payload; encoders build
	// their own headers from the device at construction time.
	PacketHeader PacketType = iota
	// PacketMeta carries out-of-band metadata changes mid-stream.
	PacketMeta
	// PacketTrigger marks a trigger event at the current stream position.
	PacketTrigger
	// PacketLogic carries a batch of packed logic samples.
	PacketLogic
	// PacketEnd closes a stream. Nothing follows it in the session.
	PacketEnd
)

// String returns the packet type name used in logs and errors.
func (t PacketType) String() string {
	switch t {
	case PacketHeader:
		return "header"
	case PacketMeta:
		return "meta"
	case PacketTrigger:
		return "trigger"
	case PacketLogic:
		return "logic"
	case PacketEnd:
		return "end"
	}
	return fmt.Sprintf("packettype(%d)", int(t))
}

// LogicPayload is a batch of packed samples attached to a PacketLogic
// packet. Data holds len(Data)/UnitSize consecutive samples of UnitSize
// bytes each; bit i of a sample (bit i%8 of byte i/8) is the level of
// the channel with Index i.
type LogicPayload struct {
	Data     []byte
	UnitSize int
}

// Samples returns the number of whole samples in the payload.
func (p *LogicPayload) Samples() int {
	if p == nil || p.UnitSize < 1 {
		return 0
	}
	return len(p.Data) / p.UnitSize
}

// Validate checks the payload framing: UnitSize must be positive and
// the data length an exact multiple of it.
func (p *LogicPayload) Validate() error {
	if p == nil {
		return fmt.Errorf("logic payload missing: %w", ErrData)
	}
	if p.UnitSize < 1 {
		return fmt.Errorf("logic payload unit size %d: %w", p.UnitSize, ErrData)
	}
	if len(p.Data)%p.UnitSize != 0 {
		return fmt.Errorf("logic payload length %d not a multiple of unit size %d: %w",
			len(p.Data), p.UnitSize, ErrData)
	}
	return nil
}

// Packet is one datafeed packet. Logic is non-nil only when Type is
// PacketLogic.
type Packet struct {
	Type  PacketType
	Logic *LogicPayload
}

// NewLogicPacket wraps a sample batch in a PacketLogic packet. The
// payload aliases data; the caller must not mutate it until the packet
// has been consumed.
func NewLogicPacket(data []byte, unitSize int) *Packet {
	return &Packet{Type: PacketLogic, Logic: &LogicPayload{Data: data, UnitSize: unitSize}}
}

// NewTriggerPacket returns a trigger marker packet.
func NewTriggerPacket() *Packet {
	return &Packet{Type: PacketTrigger}
}

// NewEndPacket returns an end-of-stream packet.
func NewEndPacket() *Packet {
	return &Packet{Type: PacketEnd}
}
