package domain

import "time"

const (
	// MinScore and MaxScore bound a rating score, inclusive.
	MinScore = 1
	MaxScore = 9

	// DefaultDeviceID tags ratings submitted without a device header.
	DefaultDeviceID = "unknown"
)

// Rating represents a single submission for an identifier.
type Rating struct {
	ID         int64
	Identifier string
	Value      int
	Comments   *string
	DeviceID   *string
	CreatedAt  time.Time
}

// RatingView is the transport representation of a Rating.
type RatingView struct {
	ID         int64   `json:"id"`
	Identifier string  `json:"identifier"`
	Rating     int     `json:"rating"`
	Comments   *string `json:"comments"`
	CreatedAt  *string `json:"created_at"`
	DeviceID   *string `json:"device_id"`
}

// ValidScore reports whether value lies within [MinScore, MaxScore].
func ValidScore(value int) bool {
	return value >= MinScore && value <= MaxScore
}

// View serializes the rating. CreatedAt is rendered in UTC, or null when unset.
func (r Rating) View() RatingView {
	view := RatingView{
		ID:         r.ID,
		Identifier: r.Identifier,
		Rating:     r.Value,
		Comments:   r.Comments,
		DeviceID:   r.DeviceID,
	}
	if !r.CreatedAt.IsZero() {
		ts := r.CreatedAt.UTC().Format(time.RFC3339Nano)
		view.CreatedAt = &ts
	}
	return view
}
