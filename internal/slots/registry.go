package slots

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cbegin/loopcode/internal/pattern"
)

// Count is the number of slots, named d1 through d9.
const Count = 9

// Binding is one occupied slot.
type Binding struct {
	Name    string
	Index   int
	Pattern *pattern.Pattern
}

// Registry maps slot names to at most one pattern each. It is safe for
// concurrent use; readers never observe a half-applied update.
type Registry struct {
	mu       sync.RWMutex
	slots    map[string]*pattern.Pattern
	onChange func([]string)
}

func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*pattern.Pattern)}
}

// OnChange installs a hook called with the active slot names after every
// change. It runs outside the registry lock.
func (r *Registry) OnChange(fn func(active []string)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Names returns every valid slot name in order.
func Names() []string {
	out := make([]string, Count)
	for i := range out {
		out[i] = fmt.Sprintf("d%d", i+1)
	}
	return out
}

// Index returns the 1-based number of a slot name, or 0 if the name is not
// a slot.
func Index(name string) int {
	var n int
	if _, err := fmt.Sscanf(name, "d%d", &n); err != nil {
		return 0
	}
	if n < 1 || n > Count || name != fmt.Sprintf("d%d", n) {
		return 0
	}
	return n
}

// Set replaces whatever the slot held with p.
func (r *Registry) Set(name string, p *pattern.Pattern) error {
	if Index(name) == 0 {
		return fmt.Errorf("unknown slot %q", name)
	}
	if p == nil {
		_, err := r.Clear(name)
		return err
	}
	r.mu.Lock()
	r.slots[name] = p
	r.mu.Unlock()
	r.notify()
	return nil
}

// Clear empties a slot. It reports whether anything was removed.
func (r *Registry) Clear(name string) (bool, error) {
	if Index(name) == 0 {
		return false, fmt.Errorf("unknown slot %q", name)
	}
	r.mu.Lock()
	_, ok := r.slots[name]
	delete(r.slots, name)
	r.mu.Unlock()
	if ok {
		r.notify()
	}
	return ok, nil
}

// Hush clears every slot at once.
func (r *Registry) Hush() {
	r.mu.Lock()
	r.slots = make(map[string]*pattern.Pattern)
	r.mu.Unlock()
	r.notify()
}

func (r *Registry) Get(name string) *pattern.Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[name]
}

// Bindings returns a snapshot of the occupied slots ordered by slot number.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	out := make([]Binding, 0, len(r.slots))
	for name, p := range r.slots {
		out = append(out, Binding{Name: name, Index: Index(name), Pattern: p})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Active returns the names of occupied slots in order.
func (r *Registry) Active() []string {
	b := r.Bindings()
	out := make([]string, len(b))
	for i := range b {
		out[i] = b[i].Name
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// NextFree returns the lowest empty slot name, or "" when all are taken.
func (r *Registry) NextFree() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range Names() {
		if _, ok := r.slots[name]; !ok {
			return name
		}
	}
	return ""
}

func (r *Registry) notify() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn(r.Active())
	}
}
