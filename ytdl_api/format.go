package ytdl_api

import (
	"fmt"
	"math"
	"time"
)

// HumanFilesize renders a byte count with binary prefixes, e.g. "5.43 MB".
func HumanFilesize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	num := float64(bytes)
	i := 0
	for num >= 1024 && i < 8 {
		num /= 1024
		i++
	}
	unit := string("KMGTPEZY"[i-1]) + "B"
	switch round := math.Round(num); {
	case round < 10:
		return fmt.Sprintf("%.2f %s", num, unit)
	case round < 100:
		return fmt.Sprintf("%.1f %s", num, unit)
	default:
		return fmt.Sprintf("%.0f %s", round, unit)
	}
}

// FormatDuration renders d as mm:ss, or hh:mm:ss for an hour or more.
func FormatDuration(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// JobFilesize returns the size label of a job, preferring the backend's own rendering.
func JobFilesize(j DownloadJob) string {
	if j.FilesizeHuman != "" {
		return j.FilesizeHuman
	}
	if j.Filesize > 0 {
		return HumanFilesize(j.Filesize)
	}
	return ""
}
