package auth

import "strings"

// AdminPolicy is the single source of truth for admin authorization.
type AdminPolicy interface {
	IsAdmin(id *Identity) bool
}

// EmailAllowlist authorizes identities whose email is on the list.
// Comparison ignores case and surrounding space.
type EmailAllowlist struct {
	emails map[string]bool
}

// NewEmailAllowlist builds the policy from configured addresses.
func NewEmailAllowlist(emails []string) *EmailAllowlist {
	set := make(map[string]bool, len(emails))
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			set[e] = true
		}
	}
	return &EmailAllowlist{emails: set}
}

// IsAdmin implements AdminPolicy.
func (a *EmailAllowlist) IsAdmin(id *Identity) bool {
	if id == nil {
		return false
	}
	e := normalizeEmail(id.Email)
	return e != "" && a.emails[e]
}

// Len returns the number of configured admin addresses.
func (a *EmailAllowlist) Len() int { return len(a.emails) }

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
