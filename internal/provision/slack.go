package provision

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Slack simulates a Slack workspace: sequential member IDs and channels.
type Slack struct {
	mu       sync.RWMutex
	users    map[string]*slackUser // keyed by email
	channels map[string][]string   // channel -> emails
	nextID   int
}

type slackUser struct {
	id       string
	email    string
	realName string
	enabled  bool
}

func NewSlack() *Slack {
	return &Slack{
		users:    make(map[string]*slackUser),
		channels: make(map[string][]string),
		nextID:   1000,
	}
}

func (c *Slack) Name() string { return "Slack" }

func (c *Slack) EnsureAccount(_ context.Context, profile Profile) (Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[profile.Email]
	if !ok {
		user = &slackUser{
			id:       fmt.Sprintf("U%d", c.nextID),
			email:    profile.Email,
			realName: profile.FirstName + " " + profile.LastName,
			enabled:  true,
		}
		c.nextID++
		c.users[profile.Email] = user
	}
	return c.account(user), nil
}

func (c *Slack) Disable(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user, ok := c.users[email]; ok {
		user.enabled = false
	}
	return nil
}

func (c *Slack) AddToGroup(_ context.Context, email, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, member := range c.channels[channel] {
		if member == email {
			return nil
		}
	}
	c.channels[channel] = append(c.channels[channel], email)
	return nil
}

func (c *Slack) RemoveFromGroup(_ context.Context, email, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := c.channels[channel]
	for i, member := range members {
		if member == email {
			c.channels[channel] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *Slack) Users(_ context.Context) ([]Account, error) {
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
func (c *Slack) account(user *slackUser) Account {
	var groups []string
	for channel, members := range c.channels {
		for _, member := range members {
			if member == user.email {
				groups = append(groups, channel)
			}
		}
	}
	sort.Strings(groups)
	return Account{
		ID:          user.id,
		Login:       user.email,
		Email:       user.email,
		DisplayName: user.realName,
		Enabled:     user.enabled,
		Groups:      groups,
	}
}
