package provision

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// GitHub simulates a GitHub organization: usernames and team memberships.
// Disabling removes the member from the org, which also drops every team.
type GitHub struct {
	mu    sync.RWMutex
	users map[string]*githubUser // keyed by email
	teams map[string][]string    // team -> usernames
}

type githubUser struct {
	username string
	email    string
	name     string
	enabled  bool
}

func NewGitHub() *GitHub {
	return &GitHub{
		users: make(map[string]*githubUser),
		teams: make(map[string][]string),
	}
}

func (c *GitHub) Name() string { return "GitHub" }

func (c *GitHub) EnsureAccount(_ context.Context, profile Profile) (Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[profile.Email]
	if !ok {
		user = &githubUser{
			username: strings.ToLower(profile.FirstName) + strings.ToLower(profile.LastName),
			email:    profile.Email,
			name:     profile.FirstName + " " + profile.LastName,
			enabled:  true,
		}
		c.users[profile.Email] = user
	}
	return c.account(user), nil
}

func (c *GitHub) Disable(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[email]
	if !ok {
		return nil
	}
	user.enabled = false
	for team, members := range c.teams {
		for i, member := range members {
			if member == user.username {
				c.teams[team] = append(members[:i], members[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (c *GitHub) AddToGroup(_ context.Context, email, team string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[email]
	if !ok || !user.enabled {
		return nil
	}
	for _, member := range c.teams[team] {
		if member == user.username {
			return nil
		}
	}
	c.teams[team] = append(c.teams[team], user.username)
	return nil
}

func (c *GitHub) RemoveFromGroup(_ context.Context, email, team string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[email]
	if !ok {
		return nil
	}
	members := c.teams[team]
	for i, member := range members {
		if member == user.username {
			c.teams[team] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *GitHub) Users(_ context.Context) ([]Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	accounts := make([]Account, 0, len(c.users))
	for _, user := range c.users {
		accounts = append(accounts, c.account(user))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts, nil
}

// account must be called with the lock held.
func (c *GitHub) account(user *githubUser) Account {
	var groups []string
	for team, members := range c.teams {
		for _, member := range members {
			if member == user.username {
				groups = append(groups, team)
			}
		}
	}
	sort.Strings(groups)
	return Account{
		ID:          user.username,
		Login:       user.username,
		Email:       user.email,
		DisplayName: user.name,
		Enabled:     user.enabled,
		Groups:      groups,
	}
}
