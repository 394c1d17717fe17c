package services

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/internal/models"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	u := models.User{Email: "Pharm@Pharmacy.test", Password: string(hash)}
	mustCreate(t, f.db, &u)
	users := NewUserService(f.db)

	got, err := users.Authenticate(ctx, " pharm@pharmacy.test ", "letmein")
	if err != nil || got.ID != u.ID {
		t.Fatalf("Authenticate = %v, %v", got, err)
	}
	if _, err := users.Authenticate(ctx, "pharm@pharmacy.test", "wrong"); !errors.Is(err, auth.ErrBadCredentials) {
		t.Errorf("wrong password = %v", err)
	}
	if _, err := users.Authenticate(ctx, "nobody@pharmacy.test", "letmein"); !errors.Is(err, auth.ErrBadCredentials) {
		t.Errorf("unknown email = %v", err)
	}

	if err := auth.CheckPassword(ctx, users, u.ID, "letmein"); err != nil {
		t.Errorf("CheckPassword through PasswordHash: %v", err)
	}
	if !users.Exists(ctx, u.ID) || users.Exists(ctx, 9999) {
		t.Error("Exists mismatch")
	}
}
