package codec

// crc16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), the
// same check the reference codec uses both to trailer frames on transmit
// and to validate them on receive. A native codec binding would call into
// the DSP library's own CRC routine instead; this one stands in for it.
func crc16CCITT(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
