package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the credential record owned by the auth provider. An account
// may exist without a matching User record.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Disabled     bool      `json:"disabled" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return nil
}

// User is the per-user profile and role record, keyed by the account id
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email" gorm:"index"`
	Role        Role      `json:"role" gorm:"size:16"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	AvatarURL   string    `json:"avatarURL"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NameOrEmail is what other records show for this user
func (u User) NameOrEmail() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
