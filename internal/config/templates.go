package config

import (
	"fmt"
	"os"
)

func Template() string {
	return template
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

const template = `# variant is base45 (whole-payload integer) or base32 (bit groups).
# The two are not interoperable; decode with the variant used to encode.
variant = "base45"

# QR error-correction level: L, M, Q or H.
level = "Q"

# plain or indexed. Empty uses the variant default.
mode = ""

# zstd or gzip.
compressor = "zstd"

workers = 4

# Scan every n-th frame after a hit when reading video.
scan_rate = 10

image_prefix = ""

# Set to persist scanned chunks so an interrupted scan can resume.
journal_dir = ""

ffmpeg_path = "ffmpeg"

# Resample video before scanning; 0 keeps every frame.
frame_rate = 0.0

# Serve prometheus metrics on this address during scans, e.g. ":9464".
metrics_addr = ""
`
