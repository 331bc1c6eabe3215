// Package extension provides the MTAP client's extension surface: optional
// capability modules (monetization, analytics, custom governance) registered
// per client and initialized lazily, exactly once, on first use.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mtap-io/mtap-go/logger"
)

// Registry errors. Lookup and registration failures are explicit; nothing is
// signaled through nil results.
var (
	ErrInvalidID     = errors.New("extension: id is empty")
	ErrDuplicateID   = errors.New("extension: id already registered")
	ErrNotRegistered = errors.New("extension: id not registered")
)

// Extension is implemented by SDK extensions. Configuration and any client
// reference are injected at construction by the embedding application;
// Initialize performs one-time setup such as remote handshakes.
//
// Initialize may be invoked again after a failed attempt, so it must be safe
// to re-run until it first succeeds.
type Extension interface {
	// ID returns the unique extension identifier, for example
	// "ext.mtap.monetization-v1".
	ID() string
	// Initialize performs one-time setup before first use.
	Initialize(ctx context.Context) error
}

// Registry holds the extensions registered on one client. Registration is
// explicit and duplicate IDs are rejected; retrieval initializes the
// extension on first use, with concurrent first uses collapsed into a single
// Initialize call. Safe for concurrent use.
type Registry struct {
	log logger.Logger

	mu          sync.RWMutex
	extensions  map[string]Extension
	initialized map[string]bool
	sfg         singleflight.Group
}

// NewRegistry creates an empty registry. A nil logger is replaced with a
// disabled one.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.New("disabled", false)
	}
	return &Registry{
		log:         log,
		extensions:  make(map[string]Extension),
		initialized: make(map[string]bool),
	}
}

// Register adds an extension under its ID. Registering a nil extension, an
// empty ID or an already-taken ID fails; the earlier registration stays in
// place.
func (r *Registry) Register(ext Extension) error {
	if ext == nil {
		return fmt.Errorf("%w: nil extension", ErrInvalidID)
	}
	id := ext.ID()
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.extensions[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	r.extensions[id] = ext

	r.log.Debug().Str("extension_id", id).Msg("Extension registered")
	return nil
}

// Get returns the extension with the given ID, running Initialize exactly
// once before the first successful return. Initialization failures are not
// memoized; a later Get retries.
func (r *Registry) Get(ctx context.Context, id string) (Extension, error) {
	// Fast path: already initialized.
	if ext := r.getInitialized(id); ext != nil {
		return ext, nil
	}

	result, err, _ := r.sfg.Do(id, func() (any, error) {
		// Double-check after winning the flight.
		if ext := r.getInitialized(id); ext != nil {
			return ext, nil
		}
		return r.initialize(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(Extension), nil
}

// IDs returns the registered extension IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.extensions))
	for id := range r.extensions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) getInitialized(id string) Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.initialized[id] {
		return r.extensions[id]
	}
	return nil
}

func (r *Registry) initialize(ctx context.Context, id string) (Extension, error) {
	r.mu.RLock()
	ext, exists := r.extensions[id]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, id)
	}

	if err := ext.Initialize(ctx); err != nil {
		r.log.Warn().Err(err).Str("extension_id", id).Msg("Extension initialization failed")
		return nil, fmt.Errorf("extension %q: initialize: %w", id, err)
	}

	r.mu.Lock()
	r.initialized[id] = true
	r.mu.Unlock()

	r.log.Debug().Str("extension_id", id).Msg("Extension initialized")
	return ext, nil
}
