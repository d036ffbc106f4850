// Package scan drives reassembly from a sequence of frames.
//
// Ownership boundary:
//   - frame acquisition from image directories or extracted video
//   - the scan throttle and pause state machine
//   - handing distinct payloads to a reassembly.Set
//
// The loop is single-threaded. It suspends only while reading a frame and
// while polling the control input.
package scan
