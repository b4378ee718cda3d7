package analytics

import (
	"context"
	"time"
)

// EnrichmentFields holds the visitor context attached to every record.
// Pointer fields stay nil when the corresponding lookup failed or the
// client never reported the value; storage maps nil to SQL NULL.
type EnrichmentFields struct {
	IPAddress        string   `json:"ip_address,omitempty"`
	Country          string   `json:"country,omitempty"`
	Region           string   `json:"region,omitempty"`
	City             string   `json:"city,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	DeviceType       string   `json:"device_type,omitempty"`
	Browser          string   `json:"browser,omitempty"`
	OperatingSystem  string   `json:"operating_system,omitempty"`
	ScreenResolution string   `json:"screen_resolution,omitempty"`
	IsMobile         *bool    `json:"is_mobile,omitempty"`
	Timezone         string   `json:"timezone,omitempty"`
	DistanceMiles    *float64 `json:"distance_miles,omitempty"`
}

// PageViewRecord is one page impression as persisted.
type PageViewRecord struct {
	ID              string `json:"id"`
	Path            string `json:"path"`
	Title           string `json:"title,omitempty"`
	Referrer        string `json:"referrer,omitempty"`
	UserAgent       string `json:"user_agent,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	ViewDuration    *int   `json:"view_duration,omitempty"`
	SessionDuration int    `json:"session_duration"`
	PageCount       int    `json:"page_count"`
	IsBounce        bool   `json:"is_bounce"`

	EnrichmentFields

	CreatedAt time.Time `json:"created_at"`
}

// EventRecord is one named interaction as persisted. Params carries
// arbitrary event metadata and is stored as JSON.
type EventRecord struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Category  string                 `json:"category,omitempty"`
	Path      string                 `json:"path,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`

	EnrichmentFields

	CreatedAt time.Time `json:"created_at"`
}

// RecordWriter is the persistence surface the Tracker depends on.
// pkg/storage provides the real implementations.
type RecordWriter interface {
	InsertPageView(ctx context.Context, rec *PageViewRecord) error
	InsertEvent(ctx context.Context, rec *EventRecord) error
}
