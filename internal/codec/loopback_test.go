package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kg9x/freedvtnc/internal/mode"
)

func TestLoopback_ModulateFeedRoundTrip(t *testing.T) {
	for _, m := range mode.All {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			c, err := NewLoopback(m)
			require.NoError(t, err)
			defer c.Close()

			frame := make([]byte, c.BytesPerFrame())
			for i := range frame {
				frame[i] = byte(i)
			}
			crc := c.CRC16(frame[:len(frame)-2])
			frame[len(frame)-2] = crc[0]
			frame[len(frame)-1] = crc[1]

			samples := c.ModulateFrame(frame)
			assert.Equal(t, c.NinBytes(), len(samples))

			got, ok := c.FeedRX(samples)
			require.True(t, ok)
			assert.Equal(t, frame[:len(frame)-2], got)
			assert.True(t, c.Sync())
		})
	}
}

func TestLoopback_CorruptedSamplesRejected(t *testing.T) {
	c, err := NewLoopback(mode.DATAC1)
	require.NoError(t, err)
	defer c.Close()

	frame := make([]byte, c.BytesPerFrame())
	crc := c.CRC16(frame[:len(frame)-2])
	frame[len(frame)-2], frame[len(frame)-1] = crc[0], crc[1]

	samples := c.ModulateFrame(frame)
	samples[0] ^= 0xFF // flip every bit of the first data sample's low byte

	_, ok := c.FeedRX(samples)
	assert.False(t, ok, "a corrupted frame must not decode")
	assert.False(t, c.Sync())
}

func TestLoopback_WrongModeNeverDecodes(t *testing.T) {
	tx, err := NewLoopback(mode.DATAC1)
	require.NoError(t, err)
	defer tx.Close()

	frame := make([]byte, tx.BytesPerFrame())
	crc := tx.CRC16(frame[:len(frame)-2])
	frame[len(frame)-2], frame[len(frame)-1] = crc[0], crc[1]
	samples := tx.ModulateFrame(frame)

	rx, err := NewLoopback(mode.DATAC3)
	require.NoError(t, err)
	defer rx.Close()

	_, ok := rx.FeedRX(samples[:rx.NinBytes()])
	assert.False(t, ok, "a codec must ignore another mode's waveform")
	assert.False(t, rx.Sync())
}

func TestLoopback_CRC16Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")

		c, err := NewLoopback(mode.DATAC1)
		require.NoError(t, err)

		got := c.CRC16(data)
		got2 := c.CRC16(data)
		assert.Equal(t, got, got2, "CRC16 must be deterministic")
	})
}
