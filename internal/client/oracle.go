package client

// HasPermission reports whether the session grants name. It is false while
// loading, when nobody is signed in, or when the principal is unverified.
func (s Session) HasPermission(name string) bool {
	if s.Loading || !s.LoggedIn {
		return false
	}
	return s.Permissions.Has(name)
}

// HasRole is HasPermission over role names.
func (s Session) HasRole(name string) bool {
	if s.Loading || !s.LoggedIn {
		return false
	}
	return s.RoleNames.Has(name)
}

// HasPermission checks the current snapshot.
func (s *Store) HasPermission(name string) bool {
	return s.Snapshot().HasPermission(name)
}

// HasRole checks the current snapshot.
func (s *Store) HasRole(name string) bool {
	return s.Snapshot().HasRole(name)
}
