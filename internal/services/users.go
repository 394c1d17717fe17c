package services

import (
	"context"
	"errors"
	"strings"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Authenticate checks an email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, auth.ErrBadCredentials
	}
	return &u, nil
}

// PasswordHash implements auth.PasswordHashes.
func (s *UserService) PasswordHash(ctx context.Context, userID uint) (string, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Select("id", "password").First(&u, userID).Error; err != nil {
		return "", err
	}
	return u.Password, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Profile.Permissions").Preload("Employee").First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists backs auth.SetUserVerifier so deleted users lose their session.
func (s *UserService) Exists(ctx context.Context, id uint) bool {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}
