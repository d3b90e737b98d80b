// Package roles resolves role names to platform roles and keeps each
// member's exclusive role categories consistent.
package roles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// Category is a set of mutually exclusive role names.
type Category struct {
	Name  string
	Roles []string
}

// Contains reports whether name belongs to the category.
func (c Category) Contains(name string) bool {
	for _, r := range c.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// DefaultLookupTimeout bounds a shared role lookup or creation.
const DefaultLookupTimeout = 30 * time.Second

// Directory looks roles up by name and creates them on demand.
// It is safe for concurrent use; lookups for the same guild and name are
// collapsed into one platform round trip.
type Directory struct {
	gw      platform.Gateway
	logger  *log.Logger
	metrics *metrics.Metrics
	retry   platform.RetryPolicy
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string]map[string]platform.Role

	group singleflight.Group
}

// NewDirectory creates a Directory backed by gw.
func NewDirectory(gw platform.Gateway, logger *log.Logger, m *metrics.Metrics) *Directory {
	return &Directory{
		gw:      gw,
		logger:  log.OrDiscard(logger).With("component", "roles"),
		metrics: m,
		retry:   platform.DefaultRetryPolicy(),
		timeout: DefaultLookupTimeout,
		cache:   make(map[string]map[string]platform.Role),
	}
}

// WithRetryPolicy overrides the retry policy used for role creation.
func (d *Directory) WithRetryPolicy(p platform.RetryPolicy) *Directory {
	d.retry = p
	return d
}

// WithLookupTimeout overrides the bound on a shared lookup or creation.
func (d *Directory) WithLookupTimeout(timeout time.Duration) *Directory {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

func (d *Directory) cached(guildID, name string) (platform.Role, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.cache[guildID][name]
	return r, ok
}

func (d *Directory) remember(guildID string, roles ...platform.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byName, ok := d.cache[guildID]
	if !ok {
		byName = make(map[string]platform.Role)
		d.cache[guildID] = byName
	}
	for _, r := range roles {
		if _, seen := byName[r.Name]; !seen {
			byName[r.Name] = r
		}
	}
}

// Forget drops a cached role, e.g. after it was deleted on the platform.
func (d *Directory) Forget(guildID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache[guildID], name)
}

// Find returns the named role without creating it.
func (d *Directory) Find(ctx context.Context, guildID, name string) (platform.Role, bool, error) {
	if r, ok := d.cached(guildID, name); ok {
		return r, true, nil
	}
	if err := d.Refresh(ctx, guildID); err != nil {
		return platform.Role{}, false, err
	}
	r, ok := d.cached(guildID, name)
	return r, ok, nil
}

// Refresh loads the guild's role list into the cache.
func (d *Directory) Refresh(ctx context.Context, guildID string) error {
	all, err := d.gw.Roles(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	d.remember(guildID, all...)
	return nil
}

// EnsureRole returns the named role, creating it if the guild has none.
// Concurrent callers for the same guild and name observe one creation.
func (d *Directory) EnsureRole(ctx context.Context, guildID, name string) (platform.Role, error) {
	if r, ok := d.cached(guildID, name); ok {
		return r, nil
	}

	v, err, _ := d.group.Do(guildID+"/"+name, func() (interface{}, error) {
		// Callers collapsed into this flight must not inherit the first
		// caller's cancellation.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		r, ok, err := d.Find(ctx, guildID, name)
		if err != nil {
			return platform.Role{}, err
		}
		if ok {
			return r, nil
		}
		return d.create(ctx, guildID, name)
	})
	if err != nil {
		return platform.Role{}, err
	}
	return v.(platform.Role), nil
}

func (d *Directory) create(ctx context.Context, guildID, name string) (platform.Role, error) {
	r, err := platform.RetryTransient(ctx, d.retry, func() (platform.Role, error) {
		return d.gw.CreateRole(ctx, guildID, name)
	}, func(err error) {
		d.metrics.RecordRetry("create_role")
		d.logger.WithError(err).Warn("retrying role creation", "guild_id", guildID, "role", name)
	})
	if err != nil {
		d.metrics.RecordRoleOperation("create", false)
		// Another process may have created it in the meantime.
		if found, ok, findErr := d.Find(ctx, guildID, name); findErr == nil && ok {
			return found, nil
		}
		return platform.Role{}, fmt.Errorf("create role %q: %w", name, err)
	}

	d.metrics.RecordRoleOperation("create", true)
	d.logger.Info("created role", "guild_id", guildID, "role", name, "role_id", r.ID)
	d.remember(guildID, r)
	r, _ = d.cached(guildID, name)
	return r, nil
}

// ReconcileExclusive makes chosen the only role of category the member
// holds. Roles of the category that do not exist yet are never created.
func (d *Directory) ReconcileExclusive(ctx context.Context, guildID, memberID string, category Category, chosen string) error {
	if !category.Contains(chosen) {
		return fmt.Errorf("role %q is not part of category %s", chosen, category.Name)
	}

	target, err := d.EnsureRole(ctx, guildID, chosen)
	if err != nil {
		return err
	}
	member, err := d.gw.Member(ctx, guildID, memberID)
	if err != nil {
		return fmt.Errorf("load member: %w", err)
	}
	if err := d.Refresh(ctx, guildID); err != nil {
		return err
	}

	var firstErr error
	for _, name := range category.Roles {
		if name == chosen {
			continue
		}
		r, ok := d.cached(guildID, name)
		if !ok || !member.HasRole(r.ID) {
			continue
		}
		if err := d.revoke(ctx, guildID, memberID, r); err != nil {
			firstErr = keepFirst(firstErr, err)
		}
	}

	if !member.HasRole(target.ID) {
		if err := d.grant(ctx, guildID, memberID, target); err != nil {
			firstErr = keepFirst(firstErr, err)
		}
	}
	return firstErr
}

// SetAdditive grants or revokes a single role independently of any
// category. Revoking a role that does not exist is a no-op.
func (d *Directory) SetAdditive(ctx context.Context, guildID, memberID, name string, present bool) error {
	if present {
		r, err := d.EnsureRole(ctx, guildID, name)
		if err != nil {
			return err
		}
		return d.grant(ctx, guildID, memberID, r)
	}

	r, ok, err := d.Find(ctx, guildID, name)
	if err != nil || !ok {
		return err
	}
	return d.revoke(ctx, guildID, memberID, r)
}

// HoldsAny reports whether member holds at least one of the named roles.
// It only consults the cache; call Refresh first when sweeping many members.
func (d *Directory) HoldsAny(guildID string, member platform.Member, names []string) bool {
	for _, name := range names {
		if r, ok := d.cached(guildID, name); ok && member.HasRole(r.ID) {
			return true
		}
	}
	return false
}

func (d *Directory) grant(ctx context.Context, guildID, memberID string, r platform.Role) error {
	err := d.gw.GrantRole(ctx, guildID, memberID, r.ID)
	d.metrics.RecordRoleOperation("grant", err == nil)
	if err != nil {
		return fmt.Errorf("grant role %q: %w", r.Name, err)
	}
	d.logger.Debug("granted role", "guild_id", guildID, "member_id", memberID, "role", r.Name)
	return nil
}

func (d *Directory) revoke(ctx context.Context, guildID, memberID string, r platform.Role) error {
	err := d.gw.RevokeRole(ctx, guildID, memberID, r.ID)
	d.metrics.RecordRoleOperation("revoke", err == nil)
	if err != nil {
		return fmt.Errorf("revoke role %q: %w", r.Name, err)
	}
	d.logger.Debug("revoked role", "guild_id", guildID, "member_id", memberID, "role", r.Name)
	return nil
}

func keepFirst(first, err error) error {
	if first != nil {
		return first
	}
	return err
}
