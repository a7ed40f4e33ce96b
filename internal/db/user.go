package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrEmailTaken is returned by CreateUser when the email is already registered.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrUserInvalid is returned by CreateUser when name or email is missing.
	ErrUserInvalid = errors.New("name and email are required")
)

// CreateUser inserts a user. Name and email are trimmed; the email must be unique.
func CreateUser(ctx context.Context, db *gorm.DB, name, email string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, ErrUserInvalid
	}

	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	user := &User{Name: name, Email: email}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		// Lost a race with a concurrent insert of the same email.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users, oldest first.
func ListUsers(ctx context.Context, db *gorm.DB) ([]User, error) {
	var users []User
	if err := db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountUsers returns the number of users.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&User{}).Count(&n).Error
	return n, err
}
