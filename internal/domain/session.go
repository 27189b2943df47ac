package domain

import "context"

// Role of an authenticated user
type Role string

const (
	RoleSuperadmin        Role = "superadmin"
	RoleRegionalAdmin     Role = "regional_admin"
	RoleOrganizationAdmin Role = "organization_admin"
	RoleFarmer            Role = "farmer"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleRegionalAdmin, RoleOrganizationAdmin, RoleFarmer:
		return true
	}
	return false
}

// Session is the caller identity for one request.
// It travels in context.Context; there is no process-wide current user.
type Session struct {
	UserID string
	Role   Role
}

// IsSuperadmin reports whether the session has platform-wide rights
func (s Session) IsSuperadmin() bool { return s.Role == RoleSuperadmin }

type sessionKey struct{}

// WithSession returns ctx carrying s
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom extracts the session placed by WithSession
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}
