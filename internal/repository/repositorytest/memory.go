// Package repositorytest provides in-memory stores for tests.
package repositorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artisansflow/portal/internal/domain"
)

// Profiles is an in-memory profile store with injectable failures.
type Profiles struct {
	mu   sync.Mutex
	rows map[string]domain.Profile

	GetErr    error
	EnsureErr error
	UpdateErr error

	// BeforeGet runs ahead of every GetByID, outside the lock.
	BeforeGet func(ctx context.Context, id string)

	gets    int
	ensures int
}

// NewProfiles returns a store holding rows.
func NewProfiles(rows ...domain.Profile) *Profiles {
	p := &Profiles{rows: map[string]domain.Profile{}}
	for _, row := range rows {
		p.rows[row.ID] = row
	}
	return p
}

func (p *Profiles) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if hook := p.hook(); hook != nil {
		hook(ctx, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.GetErr != nil {
		return nil, p.GetErr
	}
	row, ok := p.rows[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &row, nil
}

func (p *Profiles) Ensure(_ context.Context, profile domain.Profile) (*domain.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensures++
	if p.EnsureErr != nil {
		return nil, p.EnsureErr
	}
	if row, ok := p.rows[profile.ID]; ok {
		return &row, nil
	}
	now := time.Now().UTC()
	profile.Role = domain.NormalizeRole(string(profile.Role))
	profile.CreatedAt, profile.UpdatedAt = now, now
	p.rows[profile.ID] = profile
	return &profile, nil
}

func (p *Profiles) UpdateDisplay(_ context.Context, id string, display domain.ProfileDisplay) (*domain.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UpdateErr != nil {
		return nil, p.UpdateErr
	}
	row, ok := p.rows[id]
	if !ok {
		row = domain.Profile{ID: id, Role: domain.DefaultRole, CreatedAt: time.Now().UTC()}
	}
	row.FullName, row.Company, row.LogoURL = display.FullName, display.Company, display.LogoURL
	row.UpdatedAt = time.Now().UTC()
	p.rows[id] = row
	return &row, nil
}

func (p *Profiles) SetRole(_ context.Context, id string, role domain.Role) (*domain.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UpdateErr != nil {
		return nil, p.UpdateErr
	}
	row, ok := p.rows[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	row.Role = role
	row.UpdatedAt = time.Now().UTC()
	p.rows[id] = row
	return &row, nil
}

func (p *Profiles) List(_ context.Context, limit, offset int) ([]domain.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Profile, 0, len(p.rows))
	for _, row := range p.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []domain.Profile{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (p *Profiles) Count(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.rows)), nil
}

// Row returns the stored profile for id.
func (p *Profiles) Row(id string) (domain.Profile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[id]
	return row, ok
}

// Put replaces a row directly, bypassing failure injection.
func (p *Profiles) Put(row domain.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[row.ID] = row
}

// Ensures returns how many create attempts were made.
func (p *Profiles) Ensures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensures
}

// Gets returns how many reads completed.
func (p *Profiles) Gets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets
}

func (p *Profiles) hook() func(context.Context, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.BeforeGet
}

// RoleCache is an in-memory role cache.
type RoleCache struct {
	mu    sync.Mutex
	roles map[string]domain.Role
	Err   error
	// BeforePut runs ahead of every Put, outside the lock.
	BeforePut func(ctx context.Context, userID string, role domain.Role)
}

func NewRoleCache() *RoleCache {
	return &RoleCache{roles: map[string]domain.Role{}}
}

func (c *RoleCache) Get(_ context.Context, userID string) (domain.Role, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", false, c.Err
	}
	role, ok := c.roles[userID]
	return role, ok, nil
}

func (c *RoleCache) Put(ctx context.Context, userID string, role domain.Role) error {
	c.mu.Lock()
	hook := c.BeforePut
	c.mu.Unlock()
	if hook != nil {
		hook(ctx, userID, role)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.roles[userID] = role
	return nil
}

func (c *RoleCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, userID)
	return c.Err
}

// Activity records sign-ins in memory.
type Activity struct {
	mu      sync.Mutex
	entries []activityEntry
	Err     error
}

type activityEntry struct {
	userID string
	at     time.Time
}

func NewActivity() *Activity {
	return &Activity{}
}

func (a *Activity) Record(_ context.Context, userID string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.entries = append(a.entries, activityEntry{userID: userID, at: at.UTC()})
	return nil
}

func (a *Activity) DailyCounts(_ context.Context, since time.Time) ([]domain.ActivityDay, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	byDay := map[time.Time]int64{}
	for _, e := range a.entries {
		if e.at.Before(since) {
			continue
		}
		byDay[e.at.Truncate(24*time.Hour)]++
	}
	out := make([]domain.ActivityDay, 0, len(byDay))
	for day, count := range byDay {
		out = append(out, domain.ActivityDay{Day: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (a *Activity) Count(context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.entries)), nil
}

// Users returns the recorded user ids in order.
func (a *Activity) Users() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.userID)
	}
	return out
}
