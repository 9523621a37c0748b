// Package authz holds the permission decision shared by the API middleware
// and the console session store. Both sides call into this package so that a
// role list or permission list is matched the same way everywhere.
package authz

import "strings"

// RoleRef is a role reference carried by a principal.
type RoleRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Principal is the authenticated actor as reported by the server.
type Principal struct {
	ID          string    `json:"_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Roles       []RoleRef `json:"roles"`
	RoleNames   []string  `json:"roleNames"`
	Permissions []string  `json:"-"`
	Verified    bool      `json:"isVerified"`
}

// FullName joins first and last name.
func (p *Principal) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Normalize trims and lower-cases a role or permission name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Set is an order-irrelevant set of normalized names.
type Set map[string]struct{}

// NewSet builds a Set from names, skipping blanks.
func NewSet(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		n = Normalize(n)
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is a member. A nil Set has no members.
func (s Set) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s[Normalize(name)]
	return ok
}

// HasAny reports whether at least one of names is a member.
// An empty names list never matches.
func (s Set) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Slice returns the members in no particular order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	return out
}

// Equal reports whether both sets hold exactly the same names.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// MatchAny is the single decision used by both the route guard (roles) and
// the authorization middleware (permissions): granted must contain at least
// one of required. Blank entries in required are ignored; if nothing is left
// the check fails closed.
func MatchAny(granted []string, required []string) bool {
	req := NewSet(required)
	if len(req) == 0 {
		return false
	}
	return NewSet(granted).HasAny(req.Slice()...)
}
