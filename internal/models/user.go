package models

import "github.com/google/uuid"

// User is the display profile attached to a verified participant id.
// Identity verification itself lives in internal/auth; this service only
// reads profile attributes for broadcasts and listings.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Level       int       `json:"level"`
}
