// Package protocol owns the printable wire contract.
//
// Ownership boundary:
// - alphabet primitives
// - base-N payload codecs (big-integer and fixed bit-group)
// - codec variants and their QR capacity tables
//
// Chunk framing lives in protocol/frame, order-independent reassembly in
// protocol/reassembly, and bundle records in protocol/tlv.
package protocol
