// Package link implements the frame transfer protocol between the display
// controller and the image peer.
package link

// The protocol runs over a point-to-point byte channel (usually a UART) and
// is driven entirely by the display controller:
//
//	controller -> peer: "SENDIMG\n"
//	peer -> controller: any text line containing "ACK"
//	peer -> controller: AA 55 AA 55                  start of frame
//	peer -> controller: LEN:4 (big-endian uint32)
//	peer -> controller: PAYLOAD:LEN
//
// Anything the peer writes before the ACK line or between the ACK line and
// the start-of-frame marker is ignored, so log chatter on the same line is
// tolerated. Every phase has its own deadline; there is no other error
// detection (no CRC), the caller may compare checksums of consecutive frames.
