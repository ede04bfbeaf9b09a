package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xtding233/marble-bag/internal/config"
	"github.com/xtding233/marble-bag/internal/marble"
)

var ErrUnknownBag = errors.New("unknown bag")

// Status reports one bag's state.
type Status struct {
	Name      string          `json:"name"`
	Size      int             `json:"size"`
	Remaining int             `json:"remaining"`
	AutoReset bool            `json:"auto_reset"`
	Strategy  marble.Strategy `json:"strategy"`
	RNG       string          `json:"rng"`
}

type entry struct {
	spec config.BagSpec
	bag  *marble.Bag
}

// Registry serializes access to a set of named bags.
type Registry struct {
	mu   sync.Mutex
	bags map[string]*entry
	log  *zap.Logger
}

// New returns an empty registry. A nil log discards output.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{bags: make(map[string]*entry), log: log}
}

// Apply makes the registry hold exactly specs.
// Bags whose spec did not change keep their usage; the rest are rebuilt.
// Nothing changes if any spec fails to build.
func (r *Registry) Apply(specs []config.BagSpec) error {
	built := make(map[string]*entry, len(specs))

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, spec := range specs {
		if old, ok := r.bags[spec.Name]; ok && old.spec.Same(spec) {
			built[spec.Name] = old
			continue
		}
		rng, err := marble.NewSource(spec.RNG, spec.Seed)
		if err != nil {
			return fmt.Errorf("bag %s: %w", spec.Name, err)
		}
		bag, err := marble.New(spec.Size, spec.BagConfig(), rng)
		if err != nil {
			return fmt.Errorf("bag %s: %w", spec.Name, err)
		}
		built[spec.Name] = &entry{spec: spec, bag: bag}
		_, existed := r.bags[spec.Name]
		r.log.Info("bag built",
			zap.String("bag", spec.Name),
			zap.Int("size", spec.Size),
			zap.String("strategy", string(spec.Strategy)),
			zap.Bool("auto_reset", spec.AutoReset),
			zap.Bool("replaced", existed),
		)
	}
	for name := range r.bags {
		if _, ok := built[name]; !ok {
			r.log.Info("bag removed", zap.String("bag", name))
		}
	}
	r.bags = built
	return nil
}

func (r *Registry) lookup(name string) (*entry, error) {
	e, ok := r.bags[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBag, name)
	}
	return e, nil
}

func statusOf(e *entry) Status {
	return Status{
		Name:      e.spec.Name,
		Size:      e.bag.Size(),
		Remaining: e.bag.Remaining(),
		AutoReset: e.bag.AutoReset(),
		Strategy:  e.bag.Strategy(),
		RNG:       e.spec.RNG,
	}
}

// Draw takes up to n values from a bag. Fewer come back once it is exhausted.
func (r *Registry) Draw(name string, n int) ([]int, Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return nil, Status{}, err
	}
	values := e.bag.DrawN(n)
	if len(values) < n {
		r.log.Debug("bag exhausted", zap.String("bag", name), zap.Int("asked", n), zap.Int("got", len(values)))
	}
	return values, statusOf(e), nil
}

// Reset refills a bag.
func (r *Registry) Reset(name string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return Status{}, err
	}
	e.bag.Reset()
	return statusOf(e), nil
}

func (r *Registry) Status(name string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return Status{}, err
	}
	return statusOf(e), nil
}

// List returns every bag's status sorted by name.
func (r *Registry) List() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.bags))
	for _, e := range r.bags {
		out = append(out, statusOf(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Export encodes a bag's usage snapshot.
func (r *Registry) Export(name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return marble.MarshalSnapshot(e.bag.Snapshot()), nil
}

// Import restores a bag's usage from an encoded snapshot.
// A snapshot of another size is applied on the overlapping words.
func (r *Registry) Import(name string, data []byte) (Status, error) {
	snap, err := marble.UnmarshalSnapshot(data)
	if err != nil {
		return Status{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(name)
	if err != nil {
		return Status{}, err
	}
	if snap.Size != e.bag.Size() {
		r.log.Warn("snapshot size mismatch",
			zap.String("bag", name),
			zap.Int("snapshot_size", snap.Size),
			zap.Int("bag_size", e.bag.Size()),
		)
	}
	e.bag.Restore(snap)
	return statusOf(e), nil
}
