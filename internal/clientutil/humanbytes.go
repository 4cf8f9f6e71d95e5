package clientutil

import "fmt"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// HumanBytes renders a byte count (or a bytes-per-second rate) for
// transfer logs: base-1000 scaling with a trailing unit, two decimal
// places once the value leaves the whole-byte range.
func HumanBytes(n float64) string {
	if n < 1000 {
		return fmt.Sprintf("%.0f B", n)
	}

	unit := 0
	for n >= 1000 && unit < len(byteUnits)-1 {
		n /= 1000
		unit++
	}

	return fmt.Sprintf("%.2f %s", n, byteUnits[unit])
}
