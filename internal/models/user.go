package models

import (
	"github.com/google/uuid"
)

// User roles.
const (
	RoleCustomer       = "customer"
	RolePharmacyOwner  = "pharmacy_owner"
	RoleDeliveryPerson = "delivery_person"
	RoleAdmin          = "admin"
)

// Role request states.
const (
	RoleRequestPending  = "pending"
	RoleRequestApproved = "approved"
	RoleRequestRejected = "rejected"
)

// User represents any authenticated account of the marketplace.
type User struct {
	BaseModel
	Name         string `json:"name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	Role         string `gorm:"index;default:customer" json:"role"`
}

// IsDeliveryPerson reports whether the user may be assigned to deliveries.
func (u *User) IsDeliveryPerson() bool {
	return u != nil && u.Role == RoleDeliveryPerson
}

// RoleRequest tracks a user's request to be upgraded to a staff role.
type RoleRequest struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RequestedRole string    `json:"requestedRole"`
	Status        string    `gorm:"index" json:"status"`
}

// IsRequestableRole reports whether users may ask for the given role.
func IsRequestableRole(role string) bool {
	return role == RolePharmacyOwner || role == RoleDeliveryPerson
}
