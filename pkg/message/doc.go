// Package message implements the Insteon PLM wire codec.
//
// Every frame on the serial link starts with 0x02 followed by a command
// code byte that selects the frame layout. Frames the modem sends to the
// host (codes 0x50-0x58) report device traffic and command results. Frames
// the host sends to the modem (codes 0x60-0x6f) are commands; the modem
// echoes each one back with a trailing ACK (0x06) or NAK (0x15) byte, so
// every send type can also be decoded from the inbound byte stream.
//
// Decoding never partially consumes: Decode either returns a complete
// message together with its exact encoded length, or reports that more
// bytes are needed. For every message m, decoding the encoded form yields
// m back (modulo the echo ACK byte, which only exists inbound).
package message
