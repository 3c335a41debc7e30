// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// GalleryRefreshTask asks the consumers to rebuild the gallery index.
type GalleryRefreshTask struct {
	RequestID   string    `json:"request_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}
