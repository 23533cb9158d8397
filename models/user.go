package models

import (
	"time"
)

const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey;column:user_id" json:"user_id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;index" json:"role"` // farmer, buyer, admin
	Phone        *string   `gorm:"size:40" json:"phone"`
	District     *string   `gorm:"size:120;index" json:"district"`
	ProfileImage *string   `gorm:"size:500" json:"profile_image"`
	IsVerified   bool      `gorm:"not null;default:false" json:"is_verified"`
	IsApproved   bool      `gorm:"not null;default:false" json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// CanTrade reports whether the account may log in and use the marketplace.
// Admin accounts skip the verification and approval gates.
func (u *User) CanTrade() bool {
	if u.Role == RoleAdmin {
		return true
	}
	return u.IsVerified && u.IsApproved
}

// PublicUser is the user shape returned by login and profile updates.
type PublicUser struct {
	ID           uint    `json:"user_id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	Email        string  `json:"email"`
	Phone        *string `json:"phone"`
	District     *string `json:"district"`
	ProfileImage *string `json:"profile_image"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		Email:        u.Email,
		Phone:        u.Phone,
		District:     u.District,
		ProfileImage: u.ProfileImage,
	}
}
