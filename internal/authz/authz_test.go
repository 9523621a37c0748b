package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetMembership(t *testing.T) {
	s := NewSet([]string{"user:delete", " Course:Read ", ""})

	assert.True(t, s.Has("user:delete"))
	assert.True(t, s.Has("course:read"))
	assert.True(t, s.Has("COURSE:READ"))
	assert.False(t, s.Has("user:create"))
	assert.False(t, s.Has(""))
	assert.Len(t, s, 2)
}

func TestNilSetHasNothing(t *testing.T) {
	var s Set
	assert.False(t, s.Has("anything"))
	assert.False(t, s.HasAny("a", "b"))
}

func TestHasAnyEmptyNeverMatches(t *testing.T) {
	s := NewSet([]string{"a:x"})
	assert.False(t, s.HasAny())
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required []string
		want     bool
	}{
		{"one of two", []string{"a:y"}, []string{"a:x", "a:y"}, true},
		{"neither", []string{"b:z"}, []string{"a:x", "a:y"}, false},
		{"empty required", []string{"a:x"}, nil, false},
		{"blank required", []string{"a:x"}, []string{"  "}, false},
		{"empty granted", nil, []string{"a:x"}, false},
		{"case insensitive", []string{"Teacher"}, []string{"admin", "teacher"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchAny(tt.granted, tt.required))
		})
	}
}

func TestSetEqual(t *testing.T) {
	assert.True(t, NewSet([]string{"a", "b"}).Equal(NewSet([]string{"B", "a"})))
	assert.False(t, NewSet([]string{"a"}).Equal(NewSet([]string{"a", "b"})))
	assert.False(t, NewSet([]string{"a", "c"}).Equal(NewSet([]string{"a", "b"})))
}

func TestFullName(t *testing.T) {
	p := &Principal{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Equal(t, "Ada", (&Principal{FirstName: "Ada"}).FullName())
}
