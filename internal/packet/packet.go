// Package packet defines the application-layer unit carried end to end
// between the KISS/chat sinks and the on-air frame codec.
package packet

import (
	"fmt"

	"github.com/kg9x/freedvtnc/internal/mode"
)

// Header byte values carried in a start-segment's type byte. Both are
// above 200, which is what distinguishes a start-segment header from a
// continuation sequence number on the wire.
const (
	HeaderKISS byte = 0xFF
	HeaderChat byte = 0xFE
)

// MaxDataLen is the hard cap imposed by the 2-byte big-endian length field
// used in start-segment headers.
const MaxDataLen = 1 << 15 // 32768

// Packet is an opaque application payload tagged with a header type and,
// once received, the mode it arrived on.
type Packet struct {
	Data   []byte
	Header byte
	Mode   mode.Mode // only meaningful on packets produced by the RX reassembler
}

// Validate enforces 0 <= len(data) < 32768, the capacity of the length
// field.
func (p Packet) Validate() error {
	if len(p.Data) >= MaxDataLen {
		return fmt.Errorf("packet: payload of %d bytes exceeds %d byte limit", len(p.Data), MaxDataLen)
	}
	return nil
}
