// Package datasource provides richhistory.Resolver implementations that map
// data source references onto canonical UID/name pairs.
package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mercator-hq/richhistory/pkg/richhistory"
)

// InvalidSentinel is a reference value that never resolves.
const InvalidSentinel = "invalid"

// StaticResolver resolves references against a fixed registry of data sources.
// Name lookups are exact; UIDs must be unique within the registry.
type StaticResolver struct {
	mu     sync.RWMutex
	byUID  map[string]richhistory.DataSource
	byName map[string]richhistory.DataSource
}

// NewStaticResolver creates a resolver over the given data sources.
func NewStaticResolver(sources []richhistory.DataSource) (*StaticResolver, error) {
	r := &StaticResolver{
		byUID:  make(map[string]richhistory.DataSource, len(sources)),
		byName: make(map[string]richhistory.DataSource, len(sources)),
	}
	for _, ds := range sources {
		if err := r.Register(ds); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a data source to the registry.
func (r *StaticResolver) Register(ds richhistory.DataSource) error {
	if ds.UID == "" {
		return fmt.Errorf("data source uid is required")
	}
	if ds.Name == "" {
		ds.Name = ds.UID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUID[ds.UID]; exists {
		return fmt.Errorf("data source %q already registered", ds.UID)
	}
	if other, exists := r.byName[ds.Name]; exists {
		return fmt.Errorf("data source name %q already used by %q", ds.Name, other.UID)
	}
	r.byUID[ds.UID] = ds
	r.byName[ds.Name] = ds
	return nil
}

// Resolve implements richhistory.Resolver.
func (r *StaticResolver) Resolve(ctx context.Context, ref richhistory.DataSourceRef) (richhistory.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return richhistory.DataSource{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		ds richhistory.DataSource
		ok bool
	)
	if ref.UID != "" {
		ds, ok = r.byUID[ref.UID]
	} else if ref.Name != "" {
		ds, ok = r.byName[ref.Name]
	}
	if !ok {
		return richhistory.DataSource{}, fmt.Errorf("%w: %s", richhistory.ErrDataSourceNotFound, ref)
	}
	return ds, nil
}

// List returns all registered data sources.
func (r *StaticResolver) List() []richhistory.DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]richhistory.DataSource, 0, len(r.byUID))
	for _, ds := range r.byUID {
		out = append(out, ds)
	}
	return out
}

// namePrefix derives display names from UIDs for NameConvention.
const namePrefix = "name-of-"

// NameConvention resolves any reference by deriving the missing half:
// a UID maps to "name-of-<uid>" and such a name maps back to its UID.
// The "invalid" sentinel never resolves. Useful when no registry is configured.
type NameConvention struct{}

// Resolve implements richhistory.Resolver.
func (NameConvention) Resolve(ctx context.Context, ref richhistory.DataSourceRef) (richhistory.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return richhistory.DataSource{}, err
	}

	switch {
	case ref.UID != "" && ref.UID != InvalidSentinel:
		return richhistory.DataSource{UID: ref.UID, Name: namePrefix + ref.UID}, nil
	case ref.Name != "" && ref.Name != InvalidSentinel:
		uid := strings.TrimPrefix(ref.Name, namePrefix)
		return richhistory.DataSource{UID: uid, Name: namePrefix + uid}, nil
	default:
		return richhistory.DataSource{}, fmt.Errorf("%w: %s", richhistory.ErrDataSourceNotFound, ref)
	}
}
