package models

// Principal is the verified caller of a request.
type Principal struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
}

// PrincipalFromClaims builds a principal from verified token claims.
func PrincipalFromClaims(c *JWTClaims) Principal {
	return Principal{UserID: c.UserID, Role: c.Role, Email: c.Email, FullName: c.FullName}
}

// HasRole reports whether the principal holds any of roles.
func (p Principal) HasRole(roles ...UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
