package filestore

import "time"

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ListOptions controls ListObjects.
type ListOptions struct {
	// Prefix restricts results to keys starting with it.
	Prefix string

	// Limit caps the number of results. 0 means no cap.
	Limit int
}
