package model

import "time"

// FaceProfile is one enrolled biometric identity. A user may hold up to
// three active profiles; deactivation is soft and the matching engine
// never hard-deletes a profile.
type FaceProfile struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Descriptor []float64  `json:"-"`
	Confidence int        `json:"confidence"`
	DeviceInfo string     `json:"device_info"`
	IsActive   bool       `json:"is_active"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
