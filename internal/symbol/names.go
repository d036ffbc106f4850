package symbol

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Names pre-generates count zero-padded sequential targets, so parallel
// renders never race on naming. The pad width is the digit count of count
// itself: 10 names run 00..09.
func Names(dir, prefix string, count int, ext string) []string {
	if count <= 0 {
		return nil
	}
	width := len(strconv.Itoa(count))
	out := make([]string, count)
	for i := range out {
		out[i] = filepath.Join(dir, fmt.Sprintf("%s%0*d%s", prefix, width, i, ext))
	}
	return out
}
