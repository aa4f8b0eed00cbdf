package models

import (
	"strings"
	"time"
)

// User is the identity record. ID is assigned by the chat transport, not the database.
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Handle       *string   `gorm:"size:64" json:"handle,omitempty"`
	FirstName    *string   `gorm:"size:128" json:"first_name,omitempty"`
	LastName     *string   `gorm:"size:128" json:"last_name,omitempty"`
	Role         Role      `gorm:"size:16;not null;index" json:"role"`
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`
	LastActiveAt time.Time `gorm:"not null" json:"last_active_at"`
}

// TableName specifies the database table name for User.
func (User) TableName() string {
	return "users"
}

// Contact is the transport-level identity of a user as seen in an inbound update.
type Contact struct {
	Handle    *string
	FirstName *string
	LastName  *string
}

// Owner carries the owning user's contact fields joined into profile reads.
type Owner struct {
	Handle    *string `json:"handle,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// DisplayName joins the first and last name, skipping absent parts.
func (o Owner) DisplayName() string {
	return joinName(o.FirstName, o.LastName)
}

// HandleOrEmpty returns the handle without a leading @, or "".
func (o Owner) HandleOrEmpty() string {
	if o.Handle == nil {
		return ""
	}
	return strings.TrimPrefix(*o.Handle, "@")
}

func joinName(first, last *string) string {
	parts := make([]string, 0, 2)
	for _, p := range []*string{first, last} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}

// StringPtr returns nil for an empty string and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
