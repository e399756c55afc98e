package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

const nearExpiryWindowMonths = 3

// ErrInvalidDiscountPercentage is returned for percentages outside (0, 100].
var ErrInvalidDiscountPercentage = errors.New("please provide a valid discount percentage (0-100)")

// Pharmacy is a storefront owned by exactly one pharmacy owner.
type Pharmacy struct {
	BaseModel
	Name    string    `gorm:"uniqueIndex" json:"name"`
	OwnerID uuid.UUID `gorm:"type:uuid;index" json:"ownerId"`
	Address string    `json:"address"`
	Phone   string    `json:"phone"`
	Image   string    `json:"image"`
	Rating  float64   `json:"rating"`
}

// Medicine is a catalog entry of a pharmacy.
type Medicine struct {
	BaseModel
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Price               float64   `json:"price"`
	Stock               int       `gorm:"check:stock >= 0" json:"stock"`
	Image               string    `json:"image"`
	PharmacyID          uuid.UUID `gorm:"type:uuid;index" json:"pharmacyId"`
	Pharmacy            *Pharmacy `gorm:"foreignKey:PharmacyID" json:"pharmacy,omitempty"`
	Category            string    `json:"category"`
	ExpiryDate          time.Time `json:"expiryDate"`
	StorageInstructions string    `json:"storageInstructions"`
	Manufacturer        string    `json:"manufacturer"`
	IsDiscounted        bool      `json:"isDiscounted"`
	DiscountPercentage  *float64  `json:"discountPercentage,omitempty"`
	DiscountedPrice     *float64  `json:"discountedPrice,omitempty"`
}

// IsExpired reports whether the medicine expired before now.
func (m *Medicine) IsExpired(now time.Time) bool {
	return m.ExpiryDate.Before(now)
}

// IsNearExpiry reports whether the medicine expires within three months of now.
func (m *Medicine) IsNearExpiry(now time.Time) bool {
	return !m.ExpiryDate.After(NearExpiryCutoff(now))
}

// NearExpiryCutoff returns the latest expiry date still considered near expiry.
func NearExpiryCutoff(now time.Time) time.Time {
	return now.AddDate(0, nearExpiryWindowMonths, 0)
}

// ApplyDiscount marks the medicine as discounted by the given percentage.
func (m *Medicine) ApplyDiscount(percentage float64) error {
	if percentage <= 0 || percentage > 100 || math.IsNaN(percentage) {
		return ErrInvalidDiscountPercentage
	}
	discounted := math.Round((m.Price-m.Price*percentage/100)*100) / 100
	m.IsDiscounted = true
	m.DiscountPercentage = &percentage
	m.DiscountedPrice = &discounted
	return nil
}

// RemoveDiscount clears any discount previously applied.
func (m *Medicine) RemoveDiscount() {
	m.IsDiscounted = false
	m.DiscountPercentage = nil
	m.DiscountedPrice = nil
}
