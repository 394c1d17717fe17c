package policy

import (
	"time"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/internal/handlers"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/services"
	"gorm.io/gorm"
)

// DocumentRenderer renders assembled documents for dispatch and preview.
type DocumentRenderer interface {
	lifecycle.Renderer
	handlers.VariantRenderer
}

// Deps are the collaborators chosen by the process configuration.
type Deps struct {
	DB         *gorm.DB
	Issuer     *auth.Issuer
	Renderer   DocumentRenderer
	Dispatcher lifecycle.Dispatcher
	Artifacts  lifecycle.ArtifactStore
	// CacheTTL bounds how long a resolved profile is reused. Zero means 5 minutes.
	CacheTTL time.Duration
}

// RouterConfig holds configured handlers and middleware for the application.
type RouterConfig struct {
	AuthGate *AuthGate
	Registry *lifecycle.Registry

	Users *services.UserService

	Auth      *handlers.AuthHandler
	Admin     *handlers.AdminHandler
	Catalog   *handlers.CatalogHandler
	Purchases *handlers.PurchaseHandler
	Returns   *handlers.ReturnHandler
}

// NewRouterConfig wires the authorization gate, the document policies, the
// services, the lifecycle registry and the handlers.
func NewRouterConfig(d Deps) *RouterConfig {
	ttl := d.CacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	authGate := NewAuthGate(d.DB, ttl)
	RegisterDocumentPolicies(authGate)

	users := services.NewUserService(d.DB)
	catalog := services.NewCatalogService(d.DB)
	purchases := services.NewPurchaseService(d.DB, catalog)
	returns := services.NewReturnService(d.DB, catalog)
	docs := services.NewDocuments(d.DB, purchases, returns)

	registry := lifecycle.NewRegistry(lifecycle.Deps{
		Loader:     docs,
		Renderer:   d.Renderer,
		Dispatcher: d.Dispatcher,
		Artifacts:  d.Artifacts,
		Store:      docs,
	})
	lc := &handlers.Lifecycle{
		Registry: registry,
		Loader:   docs,
		Variants: d.Renderer,
		Issuer:   d.Issuer,
		Users:    users,
	}

	return &RouterConfig{
		AuthGate:  authGate,
		Registry:  registry,
		Users:     users,
		Auth:      handlers.NewAuthHandler(users, d.Issuer, authGate, docs),
		Admin:     handlers.NewAdminHandler(d.DB, authGate),
		Catalog:   handlers.NewCatalogHandler(catalog),
		Purchases: handlers.NewPurchaseHandler(purchases, authGate, lc),
		Returns:   handlers.NewReturnHandler(returns, authGate, lc),
	}
}
