package models

// Identity is the authenticated principal attached to a connection or
// request. It is derived from a validated token and never persisted.
type Identity struct {
	UserID string   `json:"user_id"`
	Role   string   `json:"role"`
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the identity carries the given scope.
func (i Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
