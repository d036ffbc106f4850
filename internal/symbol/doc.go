// Package symbol adapts external QR libraries to the chunk wire.
//
// Ownership boundary:
// - rendering one chunk into one image file without clobbering
// - scanning at most one chunk string out of one image
// - target naming and parallel render dispatch
package symbol
