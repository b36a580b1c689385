package domain

import (
	"context"
	"time"
)

// User represents a registered account. Users are owned by the auth system; the rest of
// the app only needs their ID, Name and Email. Password and Remember only ever live in
// memory, their hashed versions are what gets stored.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name" gorm:"size:255;notNull"`
	Email string `json:"email" gorm:"size:255;notNull;uniqueIndex"`

	Password         string `json:"password,omitempty" gorm:"-"`
	PasswordHash     string `json:"-" gorm:"notNull"`
	NoPasswordNeeded bool   `json:"-" gorm:"-"`
	Remember         string `json:"-" gorm:"-"`
	RememberHash     string `json:"-" gorm:"notNull;uniqueIndex"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// UserService is a set of methods to manipulate and work with the User model.
type UserService interface {
	ByID(ctx context.Context, id int) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	ByRemember(ctx context.Context, token string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int) error
	MakeRememberToken() (string, error)
}
