package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents user role type
type UserRole string

const (
	RoleDriver UserRole = "driver"
	RoleAdmin  UserRole = "admin"
)

// Driver is the slice of the driver profile the verification engine reads
// and writes. DocumentStatus and IsVerified are owned by the status
// aggregator and must only change together.
type Driver struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	VehicleType    string    `json:"vehicle_type" db:"vehicle_type"`
	DocumentStatus string    `json:"document_status" db:"document_status"`
	IsVerified     bool      `json:"is_verified" db:"is_verified"`
	PhoneNumber    string    `json:"phone_number,omitempty" db:"phone_number"`
	FCMToken       *string   `json:"-" db:"fcm_token"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
