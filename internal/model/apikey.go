package model

import "time"

// API key scopes. Preview-only keys exist for integrations that quote
// prices without ever purchasing.
const (
	ScopePreview = "preview"
	ScopeFetch   = "fetch"
)

// APIKey is a caller credential. Only the argon2id hash is stored; the
// prefix allows lookup without revealing the secret.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	Active     bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsUsable reports whether the key may authenticate a request.
func (k *APIKey) IsUsable(now time.Time) bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}

// HasScope reports whether the key grants a scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AuthContext is the caller identity attached to a request after
// authentication. KeyID and UserID feed the usage record.
type AuthContext struct {
	KeyID     string
	KeyPrefix string
	UserID    string
	Scopes    []string
}

// HasScope reports whether the authenticated caller holds a scope.
func (a *AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
