package apiserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/folio-sites/folio-domains/pkg/db"
	"golang.org/x/crypto/bcrypt"
)

type ContextKey string

const TenantID ContextKey = "tenantID"

var errForbidden = errors.New("forbidden to use")

// TenantResolver is the single narrow seam to the identity layer: given a
// request, produce the authenticated tenant. The core never depends on the
// shape of the identity provider beyond this.
type TenantResolver interface {
	ResolveTenant(r *http.Request) (uint, error)
}

// tokenResolver authenticates bearer tokens of the form "<tenantID>.<secret>"
// against the bcrypt hash stored on the tenant row.
type tokenResolver struct {
	db db.Database
}

func NewTokenResolver(database db.Database) TenantResolver {
	return &tokenResolver{db: database}
}

func (t *tokenResolver) ResolveTenant(r *http.Request) (uint, error) {
	authorization := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authorization, "Bearer ")

	id, secret, ok := splitToken(token)
	if !ok {
		return 0, errForbidden
	}

	tenant, err := t.db.GetTenant(id)
	if err != nil || tenant.TokenHash == "" {
		return 0, errForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenant.TokenHash), []byte(secret)); err != nil {
		return 0, errForbidden
	}

	return tenant.ID, nil
}

func splitToken(token string) (uint, string, bool) {
	idPart, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return 0, "", false
	}

	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil || id == 0 {
		return 0, "", false
	}

	return uint(id), secret, true
}

func tenantAuthMiddleware(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := resolver.ResolveTenant(r)
			if err != nil {
				writeError(w, http.StatusForbidden, errForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), TenantID, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tenantIDFromContext(ctx context.Context) uint {
	tenantID, _ := ctx.Value(TenantID).(uint)
	return tenantID
}
