package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
roles:
  - name: Admin
    description: Everything
    system: true
    permissions: ["*"]
  - name: student
    permissions: [" Course:Read "]
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, f.Roles, 2)

	admin := f.Roles[0]
	assert.Equal(t, "admin", admin.Name)
	assert.True(t, admin.System)
	assert.ElementsMatch(t, model.CatalogNames(), admin.PermissionNames())

	assert.Equal(t, []string{"course:read"}, f.Roles[1].PermissionNames())
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"empty":              ``,
		"unknown key":        "roles:\n  - name: x\n    colour: red\n",
		"missing name":       "roles:\n  - description: nameless\n",
		"duplicate":          "roles:\n  - name: a\n  - name: A\n",
		"unknown permission": "roles:\n  - name: a\n    permissions: [exam:grade]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedFile(t *testing.T) {
	f, err := Load("../../seed/roles.yaml")
	require.NoError(t, err)

	names := make([]string, 0, len(f.Roles))
	for _, r := range f.Roles {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{model.RoleAdmin, model.RoleTeacher, model.RoleStudent}, names)
}

type fakeCatalog struct{ err error }

func (f fakeCatalog) SyncCatalog(context.Context) (int, error) { return len(model.Catalog), f.err }

type fakeRoles struct{ got map[string][]string }

func (f *fakeRoles) UpsertByName(_ context.Context, role *model.Role, perms []string) error {
	role.ID = "id-" + role.Name
	f.got[role.Name] = perms
	return nil
}

func TestApply(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	roles := &fakeRoles{got: map[string][]string{}}
	require.NoError(t, Apply(context.Background(), f, fakeCatalog{}, roles, zerolog.Nop()))
	assert.Len(t, roles.got["admin"], len(model.Catalog))
	assert.Equal(t, []string{"course:read"}, roles.got["student"])
}

func TestApplyStopsWhenCatalogueFails(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	roles := &fakeRoles{got: map[string][]string{}}
	err = Apply(context.Background(), f, fakeCatalog{err: errors.New("db down")}, roles, zerolog.Nop())
	assert.Error(t, err)
	assert.Empty(t, roles.got)
}
