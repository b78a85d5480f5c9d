package workout

import (
	"fmt"
	"time"
)

// FormatDuration renders short durations in seconds and longer ones in whole
// minutes, e.g. "45 sec" or "20 min".
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%d sec", secs)
	}
	return fmt.Sprintf("%d min", secs/60)
}

// FormatClock renders a countdown as MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	// Round up so a countdown shows 00:01 until it actually reaches zero.
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
