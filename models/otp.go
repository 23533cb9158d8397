package models

import (
	"time"
)

const PurposeSignupVerify = "signup_verify"

type EmailOTP struct {
	ID        uint      `gorm:"primaryKey;column:otp_id"`
	Email     string    `gorm:"size:255;not null;index"`
	Code      string    `gorm:"size:10;not null"`
	Purpose   string    `gorm:"size:30;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// TableName overrides the table name
func (EmailOTP) TableName() string {
	return "email_otps"
}

func (o *EmailOTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
