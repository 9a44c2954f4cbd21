package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/avoren/go-messenger-backend/internal/domain"
)

// caseFold normalizes usernames for search so "Bob" matches "bob". Folding
// happens in Go on both the stored copy and the query term, because SQLite's
// LOWER only handles ASCII.
var caseFold = cases.Fold()

// CreateUser inserts a new account row and returns it. The caller is
// responsible for hashing the password beforehand; uniqueness violations
// surface as gorm.ErrDuplicatedKey or the driver's constraint error.
func CreateUser(ctx context.Context, db *gorm.DB, username, email, passwordHash string) (domain.User, error) {
	u := domain.User{
		ID:             uuid.NewString(),
		Username:       username,
		UsernameFolded: caseFold.String(username),
		Email:          email,
		PasswordHash:   passwordHash,
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// GetUserByUsername fetches one account by its public identifier.
// Returns gorm.ErrRecordNotFound when no such user exists.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	return u, err
}

// UserExists reports whether an account with the given username exists.
func UserExists(ctx context.Context, db *gorm.DB, username string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("username = ?", username).
		Count(&count).Error
	return count > 0, err
}

// SearchUsers returns usernames containing the query, case-insensitively,
// excluding the requester, ordered lexicographically.
func SearchUsers(ctx context.Context, db *gorm.DB, query, requester string, limit int) ([]string, error) {
	q := caseFold.String(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var names []string
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("username_folded LIKE ? AND username <> ?", "%"+q+"%", requester).
		Order("username ASC").
		Limit(limit).
		Pluck("username", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// IsDuplicateKey reports whether err indicates a unique constraint violation.
// glebarez/sqlite does not translate every constraint error to
// gorm.ErrDuplicatedKey, so the message is checked as a fallback.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
