package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents an account in the identity store. Email and username are
// globally unique; the database index is the sole arbiter of that invariant.
type User struct {
	ID            uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	FirstName     string          `json:"firstName" gorm:"size:255;not null"`
	LastName      string          `json:"lastName" gorm:"size:255;not null"`
	Username      string          `json:"username" gorm:"uniqueIndex;size:255;not null"`
	Email         string          `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PhoneNumber   string          `json:"phoneNumber" gorm:"size:32"`
	PasswordHash  string          `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role          Role            `json:"role" gorm:"size:16;default:'user';index"`
	Verified      bool            `json:"verified" gorm:"default:false"`
	Avatar        string          `json:"avatar,omitempty" gorm:"size:512"`
	WalletBalance decimal.Decimal `json:"walletBalance" gorm:"type:decimal(19,4);default:0"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
