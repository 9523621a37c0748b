// Package servicetest provides in-memory implementations of the service
// stores for tests that should not need PostgreSQL.
package servicetest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/repository"
)

// DB is a shared in-memory dataset. Users, Roles and Permissions are views
// over it so that role assignments and permission sets stay consistent.
type DB struct {
	mu        sync.Mutex
	users     map[string]model.User
	userRoles map[string][]string
	roles     map[string]model.Role
	rolePerms map[string][]string
	perms     map[string]model.Permission
}

// NewDB returns an empty dataset.
func NewDB() *DB {
	return &DB{
		users:     map[string]model.User{},
		userRoles: map[string][]string{},
		roles:     map[string]model.Role{},
		rolePerms: map[string][]string{},
		perms:     map[string]model.Permission{},
	}
}

// Users returns the user store view.
func (db *DB) Users() *Users { return &Users{db: db} }

// Roles returns the role store view.
func (db *DB) Roles() *Roles { return &Roles{db: db} }

// Permissions returns the permission store view.
func (db *DB) Permissions() *Permissions { return &Permissions{db: db} }

// AddPermission inserts a permission and returns it.
func (db *DB) AddPermission(name string) model.Permission {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := model.Permission{ID: uuid.New().String(), Name: name, Category: strings.SplitN(name, ":", 2)[0]}
	db.perms[p.ID] = p
	return p
}

// AddRole inserts a role holding the named permissions, creating any
// permission that does not exist yet.
func (db *DB) AddRole(name string, system bool, permNames ...string) model.Role {
	var ids []string
	for _, n := range permNames {
		if p, ok := db.permByName(n); ok {
			ids = append(ids, p.ID)
			continue
		}
		ids = append(ids, db.AddPermission(n).ID)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	r := model.Role{ID: uuid.New().String(), Name: name, IsSystem: system, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	db.roles[r.ID] = r
	db.rolePerms[r.ID] = ids
	return db.roleLocked(r.ID)
}

// AddUser inserts a user holding the given roles.
func (db *DB) AddUser(email, passwordHash string, verified bool, roleIDs ...string) model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := model.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: passwordHash,
		IsVerified:   verified,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	db.users[u.ID] = u
	db.userRoles[u.ID] = slices.Clone(roleIDs)
	return db.userLocked(u.ID)
}

func (db *DB) permByName(name string) (model.Permission, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range db.perms {
		if p.Name == name {
			return p, true
		}
	}
	return model.Permission{}, false
}

func (db *DB) userLocked(id string) model.User {
	u := db.users[id]
	u.Roles = []authz.RoleRef{}
	u.RoleNames = []string{}
	for _, rid := range db.userRoles[id] {
		if r, ok := db.roles[rid]; ok {
			u.Roles = append(u.Roles, authz.RoleRef{ID: r.ID, Name: r.Name})
		}
	}
	slices.SortFunc(u.Roles, func(a, b authz.RoleRef) int { return strings.Compare(a.Name, b.Name) })
	for _, r := range u.Roles {
		u.RoleNames = append(u.RoleNames, r.Name)
	}
	return u
}

func (db *DB) roleLocked(id string) model.Role {
	r := db.roles[id]
	r.Permissions = []model.Permission{}
	for _, pid := range db.rolePerms[id] {
		r.Permissions = append(r.Permissions, db.perms[pid])
	}
	slices.SortFunc(r.Permissions, func(a, b model.Permission) int { return strings.Compare(a.Name, b.Name) })
	r.UserCount = 0
	for _, rids := range db.userRoles {
		if slices.Contains(rids, id) {
			r.UserCount++
		}
	}
	return r
}

// ─── Users ────────────────────────────────────────────────────────────────

// Users implements service.UserStore.
type Users struct{ db *DB }

func (s *Users) GetByID(_ context.Context, id string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return nil, repository.ErrNotFound
	}
	u := s.db.userLocked(id)
	return &u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, u := range s.db.users {
		if u.Email == strings.ToLower(email) {
			found := s.db.userLocked(id)
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) List(_ context.Context, f model.UserFilter) ([]model.User, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.User
	for id := range s.db.users {
		u := s.db.userLocked(id)
		if f.RoleID != "" && !slices.Contains(s.db.userRoles[id], f.RoleID) {
			continue
		}
		if f.Search != "" && !strings.Contains(u.Email, strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, u)
	}
	slices.SortFunc(all, func(a, b model.User) int { return strings.Compare(a.Email, b.Email) })

	total := len(all)
	start := min((f.Page-1)*f.PerPage, total)
	end := min(start+f.PerPage, total)
	return append([]model.User{}, all[start:end]...), total, nil
}

func (s *Users) Create(_ context.Context, u *model.User, roleIDs []string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.users {
		if existing.Email == strings.ToLower(u.Email) {
			return repository.ErrDuplicate
		}
	}
	u.ID = uuid.New().String()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	s.db.users[u.ID] = *u
	s.db.userRoles[u.ID] = slices.Clone(roleIDs)
	return nil
}

func (s *Users) Update(_ context.Context, u *model.User, passwordHash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range s.db.users {
		if id != u.ID && existing.Email == strings.ToLower(u.Email) {
			return repository.ErrDuplicate
		}
	}
	cur.Email, cur.FirstName, cur.LastName = strings.ToLower(u.Email), u.FirstName, u.LastName
	if passwordHash != "" {
		cur.PasswordHash = passwordHash
	}
	cur.UpdatedAt = time.Now()
	s.db.users[u.ID] = cur
	return nil
}

func (s *Users) ReplaceRoles(_ context.Context, userID string, roleIDs []string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[userID]; !ok {
		return repository.ErrNotFound
	}
	s.db.userRoles[userID] = slices.Clone(roleIDs)
	return nil
}

func (s *Users) SetVerified(_ context.Context, id string, verified bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = verified
	s.db.users[id] = u
	return nil
}

func (s *Users) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.users, id)
	delete(s.db.userRoles, id)
	return nil
}

func (s *Users) EffectivePermissions(_ context.Context, userID string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	set := map[string]struct{}{}
	for _, rid := range s.db.userRoles[userID] {
		for _, pid := range s.db.rolePerms[rid] {
			set[s.db.perms[pid].Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Users) IDsByRole(_ context.Context, roleID string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []string
	for uid, rids := range s.db.userRoles {
		if slices.Contains(rids, roleID) {
			ids = append(ids, uid)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ─── Roles ────────────────────────────────────────────────────────────────

// Roles implements service.RoleStore.
type Roles struct{ db *DB }

func (s *Roles) List(_ context.Context) ([]model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	roles := []model.Role{}
	for id := range s.db.roles {
		roles = append(roles, s.db.roleLocked(id))
	}
	slices.SortFunc(roles, func(a, b model.Role) int { return strings.Compare(a.Name, b.Name) })
	return roles, nil
}

func (s *Roles) GetByID(_ context.Context, id string) (*model.Role, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.roles[id]; !ok {
		return nil, repository.ErrNotFound
	}
	r := s.db.roleLocked(id)
	return &r, nil
}

func (s *Roles) Create(_ context.Context, role *model.Role, permissionIDs []string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.nameTakenLocked(role.Name, "") {
		return repository.ErrDuplicate
	}
	role.ID = uuid.New().String()
	role.CreatedAt, role.UpdatedAt = time.Now(), time.Now()
	s.db.roles[role.ID] = *role
	s.db.rolePerms[role.ID] = slices.Clone(permissionIDs)
	return nil
}

func (s *Roles) Update(_ context.Context, role *model.Role, permissionIDs []string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.roles[role.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.nameTakenLocked(role.Name, role.ID) {
		return repository.ErrDuplicate
	}
	cur.Name, cur.Description, cur.UpdatedAt = role.Name, role.Description, time.Now()
	s.db.roles[role.ID] = cur
	s.db.rolePerms[role.ID] = slices.Clone(permissionIDs)
	return nil
}

func (s *Roles) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.roles[id]; !ok {
		return repository.ErrNotFound
	}
	for _, rids := range s.db.userRoles {
		if slices.Contains(rids, id) {
			return repository.ErrInUse
		}
	}
	delete(s.db.roles, id)
	delete(s.db.rolePerms, id)
	return nil
}

func (s *Roles) CountExisting(_ context.Context, ids []string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.db.roles[id]; ok {
			n++
		}
	}
	return n, nil
}

func (s *Roles) nameTakenLocked(name, exceptID string) bool {
	for id, r := range s.db.roles {
		if id != exceptID && r.Name == name {
			return true
		}
	}
	return false
}

// ─── Permissions ──────────────────────────────────────────────────────────

// Permissions implements service.PermissionStore.
type Permissions struct{ db *DB }

func (s *Permissions) List(_ context.Context) ([]model.Permission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	perms := make([]model.Permission, 0, len(s.db.perms))
	for _, p := range s.db.perms {
		perms = append(perms, p)
	}
	slices.SortFunc(perms, func(a, b model.Permission) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return perms, nil
}

func (s *Permissions) CountExisting(_ context.Context, ids []string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.db.perms[id]; ok {
			n++
		}
	}
	return n, nil
}

func (s *Permissions) Sync(_ context.Context, defs []model.PermissionDef) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, d := range defs {
		found := false
		for id, p := range s.db.perms {
			if p.Name == d.Name {
				p.Description, p.Category = d.Description, d.Category
				s.db.perms[id] = p
				found = true
				break
			}
		}
		if !found {
			id := uuid.New().String()
			s.db.perms[id] = model.Permission{ID: id, Name: d.Name, Description: d.Description, Category: d.Category}
		}
	}
	return len(defs), nil
}
