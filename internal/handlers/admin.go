package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/models"
	"gorm.io/gorm"
)

// Invalidator drops cached profile resolutions after an assignment changes.
type Invalidator interface {
	InvalidateUser(uid uint)
	InvalidateAll()
}

// AdminHandler manages profiles, their permissions and user assignments.
type AdminHandler struct {
	DB    *gorm.DB
	Cache Invalidator
}

func NewAdminHandler(db *gorm.DB, cache Invalidator) *AdminHandler {
	return &AdminHandler{DB: db, Cache: cache}
}

func (h *AdminHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	var profiles []models.Profile
	err := h.DB.WithContext(r.Context()).Preload("Permissions").Order("name").Find(&profiles).Error
	respond(w, r, profiles, err)
}

func (h *AdminHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	var perms []models.Permission
	err := h.DB.WithContext(r.Context()).Order("resource_type, action").Find(&perms).Error
	respond(w, r, perms, err)
}

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetProfilePermissions replaces a profile's permissions with the given
// "resource:action" codes. Unknown codes are rejected.
func (h *AdminHandler) SetProfilePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req permissionsRequest
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	db := h.DB.WithContext(r.Context())
	var profile models.Profile
	if err := db.First(&profile, id).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}

	var all []models.Permission
	if err := db.Find(&all).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	byCode := make(map[string]models.Permission, len(all))
	for _, p := range all {
		byCode[p.Code()] = p
	}
	perms := make([]models.Permission, 0, len(req.Permissions))
	for _, code := range req.Permissions {
		p, ok := byCode[code]
		if !ok {
			httpx.Error(w, r, &apperr.ValidationError{Field: "permissions", Reason: apperr.ReasonInvalid, Limit: code})
			return
		}
		perms = append(perms, p)
	}
	if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if h.Cache != nil {
		h.Cache.InvalidateAll()
	}
	profile.Permissions = perms
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	err := h.DB.WithContext(r.Context()).Preload("Profile").Preload("Employee").Order("email").Find(&users).Error
	respond(w, r, users, err)
}

type assignRequest struct {
	// ProfileID nil or 0 removes the user's profile.
	ProfileID *uint `json:"profile_id"`
}

func (h *AdminHandler) AssignProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req assignRequest
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	db := h.DB.WithContext(r.Context())
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	if req.ProfileID != nil && *req.ProfileID == 0 {
		req.ProfileID = nil
	}
	if req.ProfileID != nil {
		var p models.Profile
		if err := db.First(&p, *req.ProfileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = apperr.Validation("profile_id", apperr.ReasonUnknown)
			}
			httpx.Error(w, r, err)
			return
		}
	}
	if err := db.Model(&u).Update("profile_id", req.ProfileID).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	if h.Cache != nil {
		h.Cache.InvalidateUser(u.ID)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "profile_id": req.ProfileID})
}
