package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/avoren/go-messenger-backend/internal/domain"
	"github.com/avoren/go-messenger-backend/internal/repo"
)

const maxUsernameLen = 64

// AccountService handles registration, login, and user search against the
// account database.
type AccountService struct {
	db         *gorm.DB
	bcryptCost int
}

// NewAccountService wires an AccountService. bcryptCost is the work factor
// for password hashing.
func NewAccountService(db *gorm.DB, bcryptCost int) *AccountService {
	return &AccountService{db: db, bcryptCost: bcryptCost}
}

// validUsername enforces the registration rules: non-empty, at most
// maxUsernameLen runes, and no '-' or whitespace. The hyphen is reserved as
// the room key separator; allowing it would make room keys ambiguous.
func validUsername(name string) bool {
	if name == "" || len(name) > maxUsernameLen {
		return false
	}
	return !strings.ContainsAny(name, "- \t\n\r")
}

// Register creates a new account with a bcrypt-hashed password.
// Returns ErrInvalidUsername for malformed names and ErrUsernameTaken when
// the username is already registered.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if !validUsername(username) {
		return domain.User{}, ErrInvalidUsername
	}
	if password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := repo.CreateUser(ctx, s.db, username, email, string(hash))
	if repo.IsDuplicateKey(err) {
		return domain.User{}, ErrUsernameTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies username and password and returns the account.
// Unknown users and wrong passwords both yield ErrInvalidCredentials so the
// response does not reveal which usernames exist.
func (s *AccountService) Login(ctx context.Context, username, password string) (domain.User, error) {
	u, err := repo.GetUserByUsername(ctx, s.db, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Exists reports whether username is registered.
func (s *AccountService) Exists(ctx context.Context, username string) (bool, error) {
	return repo.UserExists(ctx, s.db, username)
}

// Search returns up to limit usernames containing query, case-insensitively,
// excluding the requester.
func (s *AccountService) Search(ctx context.Context, query, requester string, limit int) ([]string, error) {
	return repo.SearchUsers(ctx, s.db, query, requester, limit)
}
