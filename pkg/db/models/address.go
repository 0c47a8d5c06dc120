package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a stored delivery address. Orders never reference it live; the
// fields are copied into an AddressSnapshot at checkout.
type Address struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	Recipient  string     `gorm:"column:recipient;not null"`
	Phone      string     `gorm:"column:phone;not null"`
	Line1      string     `gorm:"column:line1;not null"`
	Line2      string     `gorm:"column:line2"`
	City       string     `gorm:"column:city;not null"`
	District   string     `gorm:"column:district"`
	PostalCode string     `gorm:"column:postal_code"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// AddressSnapshot is the immutable copy embedded in orders. Later edits or
// deletion of the source Address never alter historical orders.
type AddressSnapshot struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	District   string `json:"district,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Snapshot copies the address fields into an order-embedded snapshot.
func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		District:   a.District,
		PostalCode: a.PostalCode,
	}
}
