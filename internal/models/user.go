package models

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleDriver UserRole = "driver"
)

// ErrNoPassword is returned by CheckPassword for accounts created through
// Google sign-in, which never had a password.
var ErrNoPassword = errors.New("account has no password")

// ParseRole validates a role string.
func ParseRole(s string) (UserRole, bool) {
	switch UserRole(s) {
	case RoleUser, RoleDriver:
		return UserRole(s), true
	}
	return "", false
}

type User struct {
	gorm.Model
	Email        string   `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Username     *string  `gorm:"column:username;uniqueIndex" json:"username"`
	Name         string   `gorm:"column:name" json:"name"`
	Password     string   `gorm:"-" json:"-"`
	PasswordHash string   `gorm:"column:password_hash" json:"-"`
	Role         UserRole `gorm:"column:role;type:varchar(16);not null" json:"role"`
	GoogleID     *string  `gorm:"column:google_id;uniqueIndex" json:"-"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	u.Password = ""
	return nil
}

func (u *User) CheckPassword(password string) error {
	if u.PasswordHash == "" {
		return ErrNoPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Public is the user shape returned to clients.
func (u *User) Public() PublicUser {
	username := ""
	if u.Username != nil {
		username = *u.Username
	}
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Username:  username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
