package runner

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry holds the runner descriptors the host knows about.
// The host populates it explicitly during startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
// If logger is nil, a discard logger is used.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		entries: make(map[string]Descriptor),
		logger:  logger,
	}
}

// Register adds a descriptor under its type key.
// A type may only be registered once; a second registration fails and
// leaves the existing entry untouched.
func (r *Registry) Register(d Descriptor) error {
	key := normalizeType(d.Type)
	if key == "" {
		return fmt.Errorf("runner type not specified")
	}
	if d.Factory == nil {
		return fmt.Errorf("runner %q has no factory", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return &DuplicateRunnerError{Type: key}
	}
	d.Type = key
	r.entries[key] = d

	r.logger.Debug("registered query runner",
		slog.String("type", key),
		slog.String("name", d.Name),
		slog.String("availability", d.Availability.String()))
	return nil
}

// Get retrieves a descriptor by type.
func (r *Registry) Get(typ string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[normalizeType(typ)]
	return d, ok
}

// IsRegistered checks if a runner type is registered.
func (r *Registry) IsRegistered(typ string) bool {
	_, ok := r.Get(typ)
	return ok
}

// List returns all registered descriptors sorted by type.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Active returns the enabled descriptors sorted by type.
// Disabled runners are registered but never selectable.
func (r *Registry) Active() []Descriptor {
	all := r.List()
	active := all[:0]
	for _, d := range all {
		if d.Enabled() {
			active = append(active, d)
		}
	}
	return active
}

// Types returns the registered type keys (sorted).
func (r *Registry) Types() []string {
	list := r.List()
	types := make([]string, len(list))
	for i, d := range list {
		types[i] = d.Type
	}
	return types
}

// New validates cfg against the runner's schema, applies defaults, and
// builds a runner instance.
func (r *Registry) New(typ string, cfg map[string]any) (QueryRunner, error) {
	if typ == "" {
		return nil, fmt.Errorf("runner type not specified")
	}

	d, ok := r.Get(typ)
	if !ok {
		return nil, &UnknownRunnerError{Type: typ, Available: r.Types()}
	}
	if !d.Enabled() {
		return nil, &Error{
			Kind:   KindConfigurationUnavailable,
			Runner: d.Type,
			Err:    fmt.Errorf("%s", d.Availability.Reason),
		}
	}

	if d.Schema != nil {
		if err := d.Schema.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid %s configuration: %w", d.Type, err)
		}
		cfg = d.Schema.WithDefaults(cfg)
	}

	qr, err := d.Factory(cfg, r.logger.With(slog.String("runner", d.Type)))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runner: %w", d.Type, err)
	}
	return qr, nil
}

func normalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}

// UnknownRunnerError is returned when an unknown runner type is requested.
type UnknownRunnerError struct {
	Type      string
	Available []string
}

func (e *UnknownRunnerError) Error() string {
	return fmt.Sprintf("unknown runner type %q\nAvailable runners: %v\nHint: Check the data source type in queryrunner.yaml", e.Type, e.Available)
}

// DuplicateRunnerError is returned when a type is registered twice.
type DuplicateRunnerError struct {
	Type string
}

func (e *DuplicateRunnerError) Error() string {
	return fmt.Sprintf("runner type %q is already registered", e.Type)
}
