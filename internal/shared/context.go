package shared

import "context"

// Role enumerates the storefront roles.
type Role string

const (
	RoleCustomer   Role = "CLIENTE"
	RoleContractor Role = "CONTRATISTA"
	RoleAdmin      Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleContractor, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller. Core operations trust it as given.
type Principal struct {
	ID       int64  `json:"id"`
	Role     Role   `json:"rol"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// IsAdmin reports whether the principal has supervisory access.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess reports whether the principal may read or mutate a row owned by ownerID.
func (p Principal) CanAccess(ownerID int64) bool {
	return p.IsAdmin() || p.ID == ownerID
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
