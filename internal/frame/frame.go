// Package frame implements the on-air segmentation protocol: packing a
// queue of application packets into fixed-size modem frames, and the
// byte-level primitives used to classify segments back out of a frame.
// The segment boundaries of a continuation are not self-delimiting (a
// continuation header carries no length), so turning a frame back into
// packets is inherently stateful; that half lives in the reassemble
// package, which is the only caller that knows how many bytes are still
// outstanding for the packet in progress. This package owns encoding and
// the header classification rule both sides share.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/kg9x/freedvtnc/internal/packet"
)

// MaxPacketsCombined is the default bound on how many application packets
// may be coalesced into a single on-air frame.
const MaxPacketsCombined = 5

// maxContinuationSeq is the highest legal continuation sequence number;
// values above it are reserved to mark a start-segment header.
const maxContinuationSeq = 200

// CRC16Func computes the trailer used to validate/sign a frame. Supplied
// by the codec adapter so the polynomial always matches what the codec's
// own receive path checks against.
type CRC16Func func([]byte) [2]byte

// Encoder lays packets out into fixed bytesPerFrame frames.
type Encoder struct {
	BytesPerFrame      int
	MaxPacketsCombined int
	CRC16              CRC16Func
}

// NewEncoder builds an Encoder for one mode's frame size.
func NewEncoder(bytesPerFrame int, crc16 CRC16Func) *Encoder {
	return &Encoder{
		BytesPerFrame:      bytesPerFrame,
		MaxPacketsCombined: MaxPacketsCombined,
		CRC16:              crc16,
	}
}

// Encode lays out queue (consumed in order) into a list of bytesPerFrame
// frames: a start-segment per packet, a continuation segment per frame
// boundary crossed mid-packet, and coalescing of subsequent packets into
// the same frame while there is room for a start-segment header plus at
// least one payload byte and fewer than MaxPacketsCombined start-segments
// sit in the frame already (a continuation segment opening the frame is
// not counted).
func (e *Encoder) Encode(queue []packet.Packet) ([][]byte, error) {
	payloadLen := e.BytesPerFrame - 2
	if payloadLen < 4 {
		return nil, fmt.Errorf("frame: bytesPerFrame %d too small to carry any segment", e.BytesPerFrame)
	}

	var frames [][]byte
	cur := make([]byte, payloadLen)
	pos := 0
	packetsInFrame := 0

	flush := func() {
		if pos == 0 {
			return
		}
		full := make([]byte, e.BytesPerFrame)
		copy(full, cur)
		frames = append(frames, full)
		cur = make([]byte, payloadLen)
		pos = 0
		packetsInFrame = 0
	}

	for i := 0; i < len(queue); i++ {
		p := queue[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}

		// The 3-byte start-segment header is charged against the frame at
		// the moment the segment is emitted, never retroactively.
		cur[pos] = p.Header
		binary.BigEndian.PutUint16(cur[pos+1:pos+3], uint16(len(p.Data)))
		pos += 3
		packetsInFrame++

		dataOff := 0
		remaining := len(p.Data)

		avail := payloadLen - pos
		n := take(avail, remaining)
		copy(cur[pos:pos+n], p.Data[dataOff:dataOff+n])
		pos += n
		dataOff += n
		remaining -= n

		seq := 0
		for remaining > 0 {
			flush()
			if seq > maxContinuationSeq {
				return nil, fmt.Errorf("frame: packet of %d bytes needs more than %d continuations", len(p.Data), maxContinuationSeq)
			}
			cur[pos] = byte(seq)
			pos++
			seq++

			avail = payloadLen - pos
			n = take(avail, remaining)
			copy(cur[pos:pos+n], p.Data[dataOff:dataOff+n])
			pos += n
			dataOff += n
			remaining -= n
		}

		more := i+1 < len(queue)
		if more && pos+3 < payloadLen && packetsInFrame < e.MaxPacketsCombined {
			continue
		}
		if more {
			flush()
		}
	}
	flush()

	for _, f := range frames {
		crc := e.CRC16(f[:payloadLen])
		f[payloadLen], f[payloadLen+1] = crc[0], crc[1]
	}
	return frames, nil
}

func take(avail, remaining int) int {
	if avail < remaining {
		return avail
	}
	return remaining
}

// Header classifies the first byte of a segment: values above 200 start
// a new packet, values 0-200 continue one.
func Header(b byte) (isStart bool) {
	return b > maxContinuationSeq
}

// ParseStart reads a start-segment header (3 bytes: type, len_hi, len_lo)
// from the front of buf. It does not copy payload; callers slice buf
// themselves once they know how much payload belongs to this segment.
func ParseStart(buf []byte) (segType byte, totalLen int, headerLen int, err error) {
	if len(buf) < 3 {
		return 0, 0, 0, fmt.Errorf("frame: truncated start-segment header")
	}
	return buf[0], int(binary.BigEndian.Uint16(buf[1:3])), 3, nil
}

// ParseContinuation reads a continuation header (1 byte: seq) from the
// front of buf.
func ParseContinuation(buf []byte) (seq int, headerLen int, err error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("frame: truncated continuation header")
	}
	return int(buf[0]), 1, nil
}

// CheckCRC reports whether frame's trailing two bytes match crc16 of the
// preceding bytes.
func CheckCRC(frame []byte, crc16 CRC16Func) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	want := crc16(frame[:n])
	return frame[n] == want[0] && frame[n+1] == want[1]
}
