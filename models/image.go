package models

import "time"

// Image is a catalog record for one stored blob. Token is the opaque id used
// in public URLs; StoredName is the on-disk filename inside the storage root.
type Image struct {
	ID          int64     `json:"id"`
	Token       string    `json:"token"`
	OwnerID     *int64    `json:"owner_id,omitempty"`
	StoredName  string    `json:"stored_name"`
	DisplayName string    `json:"display_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	SourceURL   string    `json:"source_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ImageInfo is the metadata-only listing shape returned by the list endpoint.
type ImageInfo struct {
	ID         int64     `json:"id"`
	StoredName string    `json:"stored_name"`
	Tags       []string  `json:"tags"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}
