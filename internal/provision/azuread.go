package provision

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AzureAD simulates an Azure AD tenant: object IDs, user principal names,
// and security groups.
type AzureAD struct {
	mu     sync.RWMutex
	users  map[string]*azureUser // keyed by email
	groups map[string][]string   // group -> emails
}

type azureUser struct {
	objectID          string
	userPrincipalName string
	displayName       string
	email             string
	enabled           bool
}

func NewAzureAD() *AzureAD {
	return &AzureAD{
		users:  make(map[string]*azureUser),
		groups: make(map[string][]string),
	}
}

func (c *AzureAD) Name() string { return "AzureAD" }

func (c *AzureAD) EnsureAccount(_ context.Context, profile Profile) (Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.users[profile.Email]
	if !ok {
		user = &azureUser{
			objectID: uuid.NewString(),
			userPrincipalName: fmt.Sprintf("%s.%s@example.com",
				strings.ToLower(profile.FirstName), strings.ToLower(profile.LastName)),
			displayName: profile.FirstName + " " + profile.LastName,
			email:       profile.Email,
			enabled:     true,
		}
		c.users[profile.Email] = user
	}
	return c.account(user), nil
}

func (c *AzureAD) Disable(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user, ok := c.users[email]; ok {
		user.enabled = false
	}
	return nil
}

func (c *AzureAD) AddToGroup(_ context.Context, email, group string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, member := range c.groups[group] {
		if member == email {
			return nil
		}
	}
	c.groups[group] = append(c.groups[group], email)
	return nil
}

func (c *AzureAD) RemoveFromGroup(_ context.Context, email, group string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	members := c.groups[group]
	for i, member := range members {
		if member == email {
			c.groups[group] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *AzureAD) Users(_ context.Context) ([]Account, error) {
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
func (c *AzureAD) account(user *azureUser) Account {
	var groups []string
	for group, members := range c.groups {
		for _, member := range members {
			if member == user.email {
				groups = append(groups, group)
			}
		}
	}
	sort.Strings(groups)
	return Account{
		ID:          user.objectID,
		Login:       user.userPrincipalName,
		Email:       user.email,
		DisplayName: user.displayName,
		Enabled:     user.enabled,
		Groups:      groups,
	}
}
