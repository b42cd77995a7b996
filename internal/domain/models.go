// Package domain defines the persistence models for users, lookup history,
// and the canonical geolocation record. These types are shared by every
// store backend (file, redis, sqlite) and by the service and HTTP layers.
package domain

import "time"

// User is an account that can sign in and own history entries.
//
// Fields:
//   - ID: opaque UUID assigned on creation; never changes.
//   - Email: lookup key, stored lower-cased (unique index in SQL backends).
//   - Credential: either a bcrypt hash or, in demo setups, a plaintext value.
//     It is never serialized into API responses.
//   - CreatedAt: creation timestamp.
type User struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Email      string    `json:"email"      gorm:"type:varchar(320);not null;uniqueIndex:ux_users_email"`
	Credential string    `json:"credential" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Public returns the externally visible projection of the user.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email}
}

// PublicUser is the {id, email} shape returned by the auth endpoints.
type PublicUser struct {
	ID    string `json:"id"    example:"4b6f0b1e-6c1a-4e64-9d4b-3c1f2b8f9a10"`
	Email string `json:"email" example:"user1@example.com"`
}

// GeoRecord is the provider-independent result of an IP lookup.
//
// Region and Timezone are optional extras some providers return; the core
// fields are always populated from whichever provider answered.
type GeoRecord struct {
	Address   string  `json:"ip"                 example:"8.8.8.8"`
	Country   string  `json:"country"            example:"US"`
	Region    string  `json:"region,omitempty"   example:"California"`
	City      string  `json:"city"               example:"Mountain View"`
	ISPOrOrg  string  `json:"isp"                example:"Google LLC"`
	Latitude  float64 `json:"latitude"           example:"37.4"`
	Longitude float64 `json:"longitude"          example:"-122.1"`
	Timezone  string  `json:"timezone,omitempty" example:"America/Los_Angeles"`
}

// HistoryEntry is one recorded lookup owned by a user. The payload is the
// GeoRecord captured at query time; it is never re-fetched.
//
// Entries are listed newest first by CreatedAt.
type HistoryEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index:idx_user_history,priority:1"`
	Address   string    `json:"ip"         gorm:"type:varchar(64);not null"`
	Payload   GeoRecord `json:"data"       gorm:"type:text;not null;serializer:json"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_history,priority:2"`
}

// TableName returns the database table name for HistoryEntry.
func (HistoryEntry) TableName() string { return "history" }
