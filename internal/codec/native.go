//go:build codec_native

package codec

// #cgo LDFLAGS: -lfreedv -lcodec2 -lm
// #include <stdlib.h>
// #include <freedv_api.h>
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/kg9x/freedvtnc/internal/mode"
)

// native wraps one open libfreedv instance. It is built only with the
// codec_native tag, which requires libfreedv/libcodec2 headers and
// libraries present on the build host; without the tag the reference
// Loopback codec (loopback.go) stands in for it everywhere in this
// repository. All foreign calls are confined to this file.
type native struct {
	m     mode.Mode
	props mode.Properties
	fdv   *C.struct_freedv
}

func freedvModeID(m mode.Mode) (C.int, error) {
	switch m {
	case mode.DATAC1:
		return C.FREEDV_MODE_DATAC1, nil
	case mode.DATAC3:
		return C.FREEDV_MODE_DATAC3, nil
	case mode.DATAC4:
		return C.FREEDV_MODE_DATAC4, nil
	default:
		return 0, fmt.Errorf("codec: native adapter has no libfreedv mode for %v", m)
	}
}

// NewNative opens a real libfreedv instance for m. It implements codec.Opener.
func NewNative(m mode.Mode) (Codec, error) {
	id, err := freedvModeID(m)
	if err != nil {
		return nil, err
	}
	fdv := C.freedv_open(id)
	if fdv == nil {
		return nil, fmt.Errorf("codec: freedv_open failed for %v", m)
	}
	return &native{m: m, props: mode.Props(m), fdv: fdv}, nil
}

func (c *native) Mode() mode.Mode    { return c.m }
func (c *native) SampleRate() int    { return int(C.freedv_get_modem_sample_rate(c.fdv)) }
func (c *native) BytesPerFrame() int { return int(C.freedv_get_bits_per_modem_frame(c.fdv)) / 8 }

func (c *native) NinBytes() int {
	return int(C.freedv_nin(c.fdv)) * 2
}

func (c *native) FeedRX(samples []byte) ([]byte, bool) {
	n := c.BytesPerFrame() - 2
	out := make([]byte, n)
	nbytes := C.freedv_rawdatarx(c.fdv, (*C.uchar)(unsafe.Pointer(&out[0])), (*C.short)(unsafe.Pointer(&samples[0])))
	if nbytes <= 0 {
		return nil, false
	}
	return out[:nbytes], true
}

func (c *native) ModulateFrame(frame []byte) []byte {
	nsam := int(C.freedv_get_n_tx_modem_samples(c.fdv))
	out := make([]byte, nsam*2)
	C.freedv_rawdatatx(c.fdv, (*C.short)(unsafe.Pointer(&out[0])), (*C.uchar)(unsafe.Pointer(&frame[0])))
	return out
}

func (c *native) NTxModemSamples() int {
	return int(C.freedv_get_n_tx_modem_samples(c.fdv))
}

func (c *native) PreambleSamples() []byte {
	nsam := int(C.freedv_get_n_tx_preamble_modem_samples(c.fdv))
	out := make([]byte, nsam*2)
	C.freedv_rawdatapreambletx(c.fdv, (*C.short)(unsafe.Pointer(&out[0])))
	return out
}

func (c *native) PostambleSamples() []byte {
	nsam := int(C.freedv_get_n_tx_postamble_modem_samples(c.fdv))
	out := make([]byte, nsam*2)
	C.freedv_rawdatapostambletx(c.fdv, (*C.short)(unsafe.Pointer(&out[0])))
	return out
}

func (c *native) SNR() float64 {
	var sync C.int
	var snr C.float
	C.freedv_get_modem_stats(c.fdv, &sync, &snr)
	return float64(snr)
}

func (c *native) Sync() bool {
	var sync C.int
	var snr C.float
	C.freedv_get_modem_stats(c.fdv, &sync, &snr)
	return sync != 0
}

func (c *native) CRC16(b []byte) [2]byte {
	v := uint16(C.freedv_gen_crc16((*C.uchar)(unsafe.Pointer(&b[0])), C.int(len(b))))
	return [2]byte{byte(v >> 8), byte(v)}
}

func (c *native) Close() error {
	C.freedv_close(c.fdv)
	return nil
}
