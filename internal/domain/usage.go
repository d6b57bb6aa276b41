package domain

import "time"

// UsageLog records what one completed job cost: pixels pushed through
// the converter, bytes written, and wall-clock compute time.
type UsageLog struct {
	UserID          string
	JobID           string
	PixelsConverted int64
	BytesWritten    int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
