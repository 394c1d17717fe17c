package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrTokenUsed      = errors.New("token already used")
	ErrWrongScope     = errors.New("token scoped to another document")
	ErrBadCredentials = errors.New("invalid credentials")
)

// TokenPair is returned by re-authentication.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Scope            string    `json:"scope"`
}

// Issuer signs dispatch tokens (HS256) and remembers which ones were spent.
// Each token carries the admin id (sub), the document scope (doc) and a jti.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu    sync.Mutex
	spent map[string]time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 5 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * time.Minute
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		spent:      make(map[string]time.Time),
	}
}

// Issue creates an access/refresh pair scoped to one document.
func (i *Issuer) Issue(adminID uint, scope lifecycle.Ref) (*TokenPair, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	now := i.now()
	access, accessExp, err := i.sign(adminID, scope, typeAccess, now, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(adminID, scope, typeRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
		Scope:            scope.String(),
	}, nil
}

func (i *Issuer) sign(adminID uint, scope lifecycle.Ref, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(adminID), 10),
		"doc": scope.String(),
		"typ": typ,
		"jti": uuid.NewString(),
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

type parsed struct {
	adminID uint
	scope   lifecycle.Ref
	jti     string
	exp     time.Time
}

func (i *Issuer) parse(raw, wantType string) (*parsed, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	typ, _ := claims["typ"].(string)
	sub, _ := claims["sub"].(string)
	doc, _ := claims["doc"].(string)
	jti, _ := claims["jti"].(string)
	if typ != wantType || jti == "" {
		return nil, ErrInvalidToken
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	ref, err := lifecycle.ParseRef(doc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}
	return &parsed{adminID: uint(id), scope: ref, jti: jti, exp: exp.Time}, nil
}

// spend marks jti as used. It fails when the jti was already spent.
func (i *Issuer) spend(jti string, exp time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	for k, e := range i.spent {
		if e.Before(now) {
			delete(i.spent, k)
		}
	}
	if _, ok := i.spent[jti]; ok {
		return ErrTokenUsed
	}
	i.spent[jti] = exp
	return nil
}

// Redeem exchanges an access token for the AuthToken of ref. The access
// token cannot be redeemed twice.
func (i *Issuer) Redeem(raw string, ref lifecycle.Ref) (*lifecycle.AuthToken, error) {
	p, err := i.parse(raw, typeAccess)
	if err != nil {
		return nil, err
	}
	if p.scope != ref {
		return nil, ErrWrongScope
	}
	if err := i.spend(p.jti, p.exp); err != nil {
		return nil, err
	}
	return lifecycle.NewAuthToken(p.adminID, p.scope, p.jti), nil
}

// Refresh spends a refresh token and issues a new pair for the same scope.
func (i *Issuer) Refresh(raw string) (*TokenPair, error) {
	p, err := i.parse(raw, typeRefresh)
	if err != nil {
		return nil, err
	}
	if err := i.spend(p.jti, p.exp); err != nil {
		return nil, err
	}
	return i.Issue(p.adminID, p.scope)
}

// PasswordHashes looks up an admin's bcrypt hash.
type PasswordHashes interface {
	PasswordHash(ctx context.Context, userID uint) (string, error)
}

// CheckPassword verifies an admin's password.
func CheckPassword(ctx context.Context, users PasswordHashes, userID uint, password string) error {
	if userID == 0 || password == "" {
		return ErrBadCredentials
	}
	hash, err := users.PasswordHash(ctx, userID)
	if err != nil {
		return ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrBadCredentials
	}
	return nil
}

// PasswordAuthenticator re-authenticates inside the send call itself.
type PasswordAuthenticator struct {
	Users    PasswordHashes
	AdminID  uint
	Password string
}

func (a PasswordAuthenticator) Authenticate(ctx context.Context, ref lifecycle.Ref) (*lifecycle.AuthToken, error) {
	if err := CheckPassword(ctx, a.Users, a.AdminID, a.Password); err != nil {
		return nil, apperr.Auth("re-authentication failed", err)
	}
	return lifecycle.NewAuthToken(a.AdminID, ref, uuid.NewString()), nil
}

// BearerAuthenticator redeems an access token obtained earlier from reauth.
type BearerAuthenticator struct {
	Issuer *Issuer
	Token  string
}

func (a BearerAuthenticator) Authenticate(_ context.Context, ref lifecycle.Ref) (*lifecycle.AuthToken, error) {
	tok, err := a.Issuer.Redeem(a.Token, ref)
	if err != nil {
		return nil, apperr.Auth("dispatch token rejected", err)
	}
	return tok, nil
}
