// Package tools provides host helpers shared by qrlink commands.
//
// Ownership boundary:
// - external command execution (ffmpeg frame extraction)
package tools
