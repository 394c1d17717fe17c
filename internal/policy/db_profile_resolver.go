package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/internal/models"
	"gorm.io/gorm"
)

// DBProfileResolver loads a user's profile and its permissions.
type DBProfileResolver struct {
	DB *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve returns nil, nil for a user without a profile, and
// gate.ErrUnauthorized for an unknown user.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Profile.Permissions").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gate.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		return nil, nil
	}
	perms := make([]gate.Permission, 0, len(user.Profile.Permissions))
	for _, code := range user.Profile.PermissionCodes() {
		perms = append(perms, gate.Permission(code))
	}
	return gate.NewStaticProfile(user.Profile.ID, user.Profile.Name, perms...), nil
}
