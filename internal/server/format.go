package server

import "fmt"

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with two decimals in the largest binary
// unit that keeps the value below 1024, falling back to PB.
func FormatSize(n int64) string {
	v, unit := scaleSize(n)
	return fmt.Sprintf("%.2f %s", v, unit)
}

func scaleSize(n int64) (float64, string) {
	if n < 0 {
		n = 0
	}
	size := float64(n)
	for _, unit := range sizeUnits {
		if size < 1024 {
			return size, unit
		}
		size /= 1024
	}
	return size, "PB"
}
