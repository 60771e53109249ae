package users_test

import (
	"testing"

	"github.com/jrsteele09/issue-tracker-client/users"
	"github.com/stretchr/testify/require"
)

func lookup() users.User {
	return users.User{ID: 7, Username: "alice", Email: "alice@example.com", IsStaff: true}
}

func TestSimple(t *testing.T) {
	t.Run("From a returned value", func(t *testing.T) {
		require.Equal(t, users.SimpleUser{ID: 7, Username: "alice", Email: "alice@example.com"}, lookup().Simple())
	})

	t.Run("From a pointer", func(t *testing.T) {
		u := lookup()
		p := &u
		require.Equal(t, 7, p.Simple().ID)
	})
}

func TestIs(t *testing.T) {
	u := lookup()
	tests := []struct {
		name string
		user *users.User
		s    *users.SimpleUser
		want bool
	}{
		{name: "Same account", user: &u, s: &users.SimpleUser{ID: 7}, want: true},
		{name: "Other account", user: &u, s: &users.SimpleUser{ID: 8}, want: false},
		{name: "Nil nested user", user: &u, s: nil, want: false},
		{name: "Nil user", user: nil, s: &users.SimpleUser{ID: 7}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.user.Is(tt.s))
		})
	}
}
