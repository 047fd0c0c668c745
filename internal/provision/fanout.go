package provision

import (
	"context"
	"log/slog"

	"governa/internal/identity/models"
)

// Fanout routes entitlement changes to connectors by the entitlement's
// system prefix. Connector failures and unknown systems are logged and
// skipped: the ledger has already committed, and the trail there is the
// source of truth.
type Fanout struct {
	connectors map[string]Connector
	logger     *slog.Logger
}

func NewFanout(logger *slog.Logger, connectors ...Connector) *Fanout {
	byName := make(map[string]Connector, len(connectors))
	for _, connector := range connectors {
		byName[connector.Name()] = connector
	}
	return &Fanout{
		connectors: byName,
		logger:     logger.With(slog.String("component", "provision")),
	}
}

// Connector returns the named connector for direct inspection.
func (f *Fanout) Connector(name string) (Connector, bool) {
	connector, ok := f.connectors[name]
	return connector, ok
}

// Names lists the registered connector names, for error reporting.
func (f *Fanout) Names() []string {
	names := make([]string, 0, len(f.connectors))
	for name := range f.connectors {
		names = append(names, name)
	}
	return names
}

// Grant ensures an account exists on the entitlement's system and adds the
// group membership.
func (f *Fanout) Grant(ctx context.Context, profile Profile, entitlements []string) {
	for _, entitlement := range entitlements {
		system, group, err := models.ParseEntitlement(entitlement)
		if err != nil {
			f.logger.Warn("skipping malformed entitlement", slog.String("entitlement", entitlement))
			continue
		}
		connector, ok := f.connectors[system]
		if !ok {
			f.logger.Warn("no connector for system", slog.String("system", system))
			continue
		}
		if _, err := connector.EnsureAccount(ctx, profile); err != nil {
			f.logger.Error("account provisioning failed",
				slog.String("system", system), slog.String("email", profile.Email), slog.Any("error", err))
			continue
		}
		if err := connector.AddToGroup(ctx, profile.Email, group); err != nil {
			f.logger.Error("group assignment failed",
				slog.String("system", system), slog.String("group", group), slog.Any("error", err))
		}
	}
}

// Revoke removes group memberships.
func (f *Fanout) Revoke(ctx context.Context, email string, entitlements []string) {
	for _, entitlement := range entitlements {
		system, group, err := models.ParseEntitlement(entitlement)
		if err != nil {
			continue
		}
		connector, ok := f.connectors[system]
		if !ok {
			continue
		}
		if err := connector.RemoveFromGroup(ctx, email, group); err != nil {
			f.logger.Error("group removal failed",
				slog.String("system", system), slog.String("group", group), slog.Any("error", err))
		}
	}
}

// Offboard disables the identity's account on every system.
func (f *Fanout) Offboard(ctx context.Context, email string) {
	for name, connector := range f.connectors {
		if err := connector.Disable(ctx, email); err != nil {
			f.logger.Error("account disable failed",
				slog.String("system", name), slog.String("email", email), slog.Any("error", err))
		}
	}
}
