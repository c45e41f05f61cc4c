package reassemble

import (
	"bytes"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kg9x/freedvtnc/internal/codec"
	"github.com/kg9x/freedvtnc/internal/frame"
	"github.com/kg9x/freedvtnc/internal/mode"
	"github.com/kg9x/freedvtnc/internal/packet"
)

type recordingSink struct {
	packets  []packet.Packet
	progress int
}

func (s *recordingSink) OnPacket(p packet.Packet)                     { s.packets = append(s.packets, p) }
func (s *recordingSink) OnProgress(total, remaining int, m mode.Mode) { s.progress++ }

func silentLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// txOnLoopback modulates queue for m using a fresh Loopback TX codec and
// returns the PCM bytes the reassembler would be fed on receive.
func txOnLoopback(t *testing.T, m mode.Mode, queue []packet.Packet) []byte {
	t.Helper()
	tx, err := codec.NewLoopback(m)
	require.NoError(t, err)
	defer tx.Close()

	enc := frame.NewEncoder(tx.BytesPerFrame(), tx.CRC16)
	frames, err := enc.Encode(queue)
	require.NoError(t, err)

	var pcm bytes.Buffer
	for _, f := range frames {
		pcm.Write(tx.ModulateFrame(f))
	}
	return pcm.Bytes()
}

func TestReassembler_S1_ShortKISS(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	queue := []packet.Packet{{Data: []byte("test"), Header: packet.HeaderKISS}}
	pcm := txOnLoopback(t, mode.DATAC1, queue)
	r.Write(pcm)

	require.Len(t, sink.packets, 1)
	assert.Equal(t, []byte("test"), sink.packets[0].Data)
	assert.Equal(t, packet.HeaderKISS, sink.packets[0].Header)
	assert.Equal(t, mode.DATAC1, sink.packets[0].Mode)
}

func TestReassembler_S2_MultiFrame(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	data := bytes.Repeat([]byte("test"), 200) // 800 bytes
	queue := []packet.Packet{{Data: data, Header: packet.HeaderKISS}}
	pcm := txOnLoopback(t, mode.DATAC1, queue)
	r.Write(pcm)

	require.Len(t, sink.packets, 1)
	assert.Equal(t, data, sink.packets[0].Data)
}

func TestReassembler_S3_Batched(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	queue := []packet.Packet{
		{Data: []byte("a"), Header: packet.HeaderKISS},
		{Data: []byte("b"), Header: packet.HeaderKISS},
		{Data: []byte("c"), Header: packet.HeaderKISS},
	}

	tx, err := codec.NewLoopback(mode.DATAC1)
	require.NoError(t, err)
	defer tx.Close()
	enc := frame.NewEncoder(tx.BytesPerFrame(), tx.CRC16)
	frames, err := enc.Encode(queue)
	require.NoError(t, err)
	require.Len(t, frames, 1, "three short packets must coalesce into one frame")

	var pcm bytes.Buffer
	for _, f := range frames {
		pcm.Write(tx.ModulateFrame(f))
	}
	r.Write(pcm.Bytes())

	require.Len(t, sink.packets, 3)
	assert.Equal(t, []byte("a"), sink.packets[0].Data)
	assert.Equal(t, []byte("b"), sink.packets[1].Data)
	assert.Equal(t, []byte("c"), sink.packets[2].Data)
}

func TestReassembler_FIFOOrdering(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	queue := []packet.Packet{
		{Data: []byte("p1"), Header: packet.HeaderKISS},
		{Data: bytes.Repeat([]byte("x"), 500), Header: packet.HeaderKISS},
		{Data: []byte("p3"), Header: packet.HeaderKISS},
	}
	pcm := txOnLoopback(t, mode.DATAC1, queue)
	r.Write(pcm)

	require.Len(t, sink.packets, 3)
	assert.Equal(t, []byte("p1"), sink.packets[0].Data)
	assert.Equal(t, bytes.Repeat([]byte("x"), 500), sink.packets[1].Data)
	assert.Equal(t, []byte("p3"), sink.packets[2].Data)
}

func TestReassembler_MissingSequenceAbortsPacket(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	tx, err := codec.NewLoopback(mode.DATAC1)
	require.NoError(t, err)
	defer tx.Close()

	data := bytes.Repeat([]byte("y"), 500) // spans multiple frames
	enc := frame.NewEncoder(tx.BytesPerFrame(), tx.CRC16)
	frames, err := enc.Encode([]packet.Packet{{Data: data, Header: packet.HeaderKISS}})
	require.NoError(t, err)
	require.Greater(t, len(frames), 2, "test needs a packet spanning 3+ frames")

	// Drop the middle frame to break the continuation sequence.
	var pcm bytes.Buffer
	pcm.Write(tx.ModulateFrame(frames[0]))
	pcm.Write(tx.ModulateFrame(frames[2]))
	r.Write(pcm.Bytes())

	assert.Empty(t, sink.packets, "a dropped continuation must not deliver a truncated packet")
}

func TestReassembler_CoalescingRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "numPackets")
		var queue []packet.Packet
		for i := 0; i < n; i++ {
			size := rapid.IntRange(0, 20).Draw(t, "size")
			data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(t, "data")
			queue = append(queue, packet.Packet{Data: data, Header: packet.HeaderKISS})
		}

		tx, err := codec.NewLoopback(mode.DATAC1)
		require.NoError(t, err)
		defer tx.Close()
		enc := frame.NewEncoder(tx.BytesPerFrame(), tx.CRC16)
		frames, err := enc.Encode(queue)
		require.NoError(t, err)
		if len(frames) != 1 {
			return // only check the coalescing property when it fits one frame
		}

		sink := &recordingSink{}
		r, err := New(codec.NewLoopback, sink, silentLogger())
		require.NoError(t, err)
		defer r.Close()

		var pcm bytes.Buffer
		for _, f := range frames {
			pcm.Write(tx.ModulateFrame(f))
		}
		r.Write(pcm.Bytes())

		require.Len(t, sink.packets, len(queue))
		for i, p := range queue {
			assert.Equal(t, p.Data, sink.packets[i].Data)
		}
	})
}

func TestReassembler_HeaderOnlyPacketFiresProgress(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	queue := []packet.Packet{{Data: nil, Header: packet.HeaderKISS}}
	pcm := txOnLoopback(t, mode.DATAC1, queue)
	r.Write(pcm)

	require.Len(t, sink.packets, 1)
	assert.Empty(t, sink.packets[0].Data)
	assert.Equal(t, 1, sink.progress, "even a zero-length start segment is a segment update")
}

func TestReassembler_FramingRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(0, 4096).Draw(rt, "size")
		data := rapid.SliceOfN(rapid.Byte(), size, size).Draw(rt, "data")
		header := rapid.SampledFrom([]byte{packet.HeaderKISS, packet.HeaderChat}).Draw(rt, "header")

		sink := &recordingSink{}
		r, err := New(codec.NewLoopback, sink, silentLogger())
		require.NoError(t, err)
		defer r.Close()

		pcm := txOnLoopback(t, mode.DATAC1, []packet.Packet{{Data: data, Header: header}})
		r.Write(pcm)

		if len(sink.packets) != 1 {
			rt.Fatalf("expected exactly one delivered packet, got %d", len(sink.packets))
		}
		if string(sink.packets[0].Data) != string(data) {
			rt.Fatalf("payload mismatch after round trip")
		}
		if sink.packets[0].Header != header {
			rt.Fatalf("header mismatch: got %#x want %#x", sink.packets[0].Header, header)
		}
	})
}

func TestReassembler_InhibitFollowsSync(t *testing.T) {
	sink := &recordingSink{}
	r, err := New(codec.NewLoopback, sink, silentLogger())
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.Inhibit())

	pcm := txOnLoopback(t, mode.DATAC1, []packet.Packet{{Data: []byte("hi"), Header: packet.HeaderKISS}})
	r.Write(pcm)
	assert.True(t, r.Inhibit(), "a decoded frame should leave the producing codec synced")
}
