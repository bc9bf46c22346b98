package message

// checksumD14 computes the two's-complement checksum that i2cs devices
// require in the last payload byte of an extended command.
func checksumD14(cmd1, cmd2 byte, data []byte) byte {
	sum := int(cmd1) + int(cmd2)
	for _, b := range data {
		sum += int(b)
	}
	return byte((^sum + 1) & 0xff)
}

// crc16 computes the 16-bit CRC that thermostat extended commands carry
// in the last two payload bytes.
func crc16(cmd1, cmd2 byte, data []byte) uint16 {
	var crc uint16
	step := func(b byte) {
		for bit := 0; bit < 8; bit++ {
			x := uint16(b & 0x01)
			if crc&0x8000 != 0 {
				x ^= 0x01
			}
			if crc&0x4000 != 0 {
				x ^= 0x01
			}
			if crc&0x1000 != 0 {
				x ^= 0x01
			}
			if crc&0x0008 != 0 {
				x ^= 0x01
			}
			crc = (crc << 1) | x
			b >>= 1
		}
	}
	step(cmd1)
	step(cmd2)
	for _, b := range data {
		step(b)
	}
	return crc
}
