// Package catalog stores the parameter catalog and serves searches and
// validation against it, locally or through a remote catalog service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/strongdm/paramref/internal/paramref"
)

// DefaultSearchLimit caps the number of suggestions a search returns.
const DefaultSearchLimit = 10

// ErrInvalidName indicates the provided parameter name failed validation.
var ErrInvalidName = errors.New("invalid parameter name")

// ErrInvalidParameter indicates a field other than the name failed validation.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrNotFound is returned when a parameter cannot be located.
var ErrNotFound = errors.New("parameter not found")

// ErrConflict indicates an operation would overwrite an existing parameter.
var ErrConflict = errors.New("parameter already exists")

// EventKind names a catalog change.
type EventKind string

const (
	EventUpsert EventKind = "upsert"
	EventDelete EventKind = "delete"
	EventReload EventKind = "reload"
)

// Event describes one catalog change.
type Event struct {
	Kind      EventKind           `json:"kind"`
	Name      string              `json:"name,omitempty"`
	OldName   string              `json:"oldName,omitempty"`
	Parameter *paramref.Parameter `json:"parameter,omitempty"`
	Count     int                 `json:"count,omitempty"`
}

// Manager stores the catalog in memory with concurrency safety and writes
// changes through to an optional Store.
type Manager struct {
	mu     sync.RWMutex
	params map[string]paramref.Parameter
	store  Store
	limit  int
	check  *validator.Validate

	subMu sync.RWMutex
	subs  []func(Event)
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists every change to store.
func WithStore(store Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithSearchLimit overrides DefaultSearchLimit. Zero or less means no limit.
func WithSearchLimit(n int) Option {
	return func(m *Manager) { m.limit = n }
}

// NewManager constructs an empty Manager instance.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		params: make(map[string]paramref.Parameter),
		limit:  DefaultSearchLimit,
		check:  newValidator(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("paramname", func(fl validator.FieldLevel) bool {
		return paramref.IsValidName(fl.Field().String())
	})
	return v
}

// Load replaces the in-memory catalog with the store contents.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	params, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	m.mu.Lock()
	m.params = make(map[string]paramref.Parameter, len(params))
	for _, p := range params {
		m.params[p.Name] = p
	}
	m.mu.Unlock()
	m.publish(Event{Kind: EventReload, Count: len(params)})
	return nil
}

// Subscribe registers fn for every subsequent change. fn runs on the
// goroutine that made the change.
func (m *Manager) Subscribe(fn func(Event)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) publish(ev Event) {
	m.subMu.RLock()
	subs := append([]func(Event){}, m.subs...)
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// List returns parameters ordered by name. Inactive parameters are included
// only when includeInactive is set.
func (m *Manager) List(includeInactive bool) []paramref.Parameter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]paramref.Parameter, 0, len(m.params))
	for _, p := range m.params {
		if !p.Active && !includeInactive {
			continue
		}
		out = append(out, p)
	}
	sortByName(out)
	return out
}

// Names returns the set of active parameter names.
func (m *Manager) Names() paramref.NameSet {
	return paramref.NewNameSet(m.List(false))
}

// Get returns the parameter with the given name.
func (m *Manager) Get(name string) (paramref.Parameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.params[strings.TrimSpace(name)]
	if !ok {
		return paramref.Parameter{}, ErrNotFound
	}
	return p, nil
}

// Upsert creates, updates, or renames a parameter and returns the stored
// state. pathName identifies an existing parameter; when it is empty or
// unknown the parameter is created. An empty p.Name keeps pathName.
func (m *Manager) Upsert(ctx context.Context, pathName string, p paramref.Parameter) (paramref.Parameter, error) {
	pathName = strings.TrimSpace(pathName)
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = pathName
	}
	if err := m.validate(p); err != nil {
		return paramref.Parameter{}, err
	}

	m.mu.Lock()
	var (
		existing paramref.Parameter
		ok       bool
	)
	if pathName != "" {
		existing, ok = m.params[pathName]
	}

	var ev Event
	switch {
	case ok:
		if p.Name != pathName {
			if _, taken := m.params[p.Name]; taken {
				m.mu.Unlock()
				return paramref.Parameter{}, ErrConflict
			}
		}
		p.ID = existing.ID
		ev = Event{Kind: EventUpsert, Name: p.Name}
		if p.Name != pathName {
			ev.OldName = pathName
		}
	default:
		if _, taken := m.params[p.Name]; taken {
			m.mu.Unlock()
			return paramref.Parameter{}, ErrConflict
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		ev = Event{Kind: EventUpsert, Name: p.Name}
	}

	if m.store != nil {
		if err := m.store.Put(ctx, ev.OldName, p); err != nil {
			m.mu.Unlock()
			return paramref.Parameter{}, fmt.Errorf("persist parameter %s: %w", p.Name, err)
		}
	}
	if ev.OldName != "" {
		delete(m.params, ev.OldName)
	}
	m.params[p.Name] = p
	m.mu.Unlock()

	stored := p
	ev.Parameter = &stored
	m.publish(ev)
	return p, nil
}

// Delete removes a parameter by name.
func (m *Manager) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	m.mu.Lock()
	if _, ok := m.params[name]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if m.store != nil {
		if err := m.store.Delete(ctx, name); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("delete parameter %s: %w", name, err)
		}
	}
	delete(m.params, name)
	m.mu.Unlock()

	m.publish(Event{Kind: EventDelete, Name: name})
	return nil
}

// Replace swaps the whole catalog for params, typically after a catalog
// file reload. Duplicate or invalid entries reject the whole set.
func (m *Manager) Replace(ctx context.Context, params []paramref.Parameter) error {
	next := make(map[string]paramref.Parameter, len(params))
	for i, p := range params {
		if err := m.validate(p); err != nil {
			return fmt.Errorf("entry %d (%q): %w", i, p.Name, err)
		}
		if _, dup := next[p.Name]; dup {
			return fmt.Errorf("entry %d (%q): %w", i, p.Name, ErrConflict)
		}
		next[p.Name] = p
	}

	m.mu.Lock()
	for name, p := range next {
		if p.ID != "" {
			continue
		}
		if prev, ok := m.params[name]; ok {
			p.ID = prev.ID
		} else {
			p.ID = uuid.NewString()
		}
		next[name] = p
	}
	if m.store != nil {
		all := make([]paramref.Parameter, 0, len(next))
		for _, p := range next {
			all = append(all, p)
		}
		if err := m.store.ReplaceAll(ctx, all); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("persist catalog: %w", err)
		}
	}
	m.params = next
	m.mu.Unlock()

	m.publish(Event{Kind: EventReload, Count: len(next)})
	return nil
}

// SearchParameters returns active parameters whose names contain term,
// ignoring case, ordered by name and capped at the search limit.
func (m *Manager) SearchParameters(_ context.Context, term string) ([]paramref.Parameter, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	all := m.List(false)
	out := make([]paramref.Parameter, 0, len(all))
	for _, p := range all {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, p)
		if m.limit > 0 && len(out) == m.limit {
			break
		}
	}
	return out, nil
}

// ValidateText validates text against the active parameters.
func (m *Manager) ValidateText(_ context.Context, text string) (paramref.ValidationResult, error) {
	return paramref.Validate(text, m.Names()), nil
}

func (m *Manager) validate(p paramref.Parameter) error {
	if !paramref.IsValidName(p.Name) || len(p.Name) > 100 {
		return ErrInvalidName
	}
	if err := m.check.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidParameter, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return nil
}

func sortByName(params []paramref.Parameter) {
	sort.Slice(params, func(i, j int) bool {
		return params[i].Name < params[j].Name
	})
}
