package slots

import (
	"reflect"
	"sync"
	"testing"

	"github.com/cbegin/loopcode/internal/pattern"
)

func newPattern(t *testing.T, text string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.FromNotation(pattern.KindSound, text, 0)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return p
}

func TestSetReplacesBinding(t *testing.T) {
	r := NewRegistry()
	first := newPattern(t, "bd")
	second := newPattern(t, "sd")
	if err := r.Set("d1", first); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := r.Set("d1", second); err != nil {
		t.Fatalf("set: %v", err)
	}
	b := r.Bindings()
	if len(b) != 1 || b[0].Pattern != second {
		t.Fatalf("bindings = %+v, want only the second pattern", b)
	}
}

func TestHushClearsAll(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"d1", "d3", "d9"} {
		if err := r.Set(name, newPattern(t, "bd")); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	r.Hush()
	if r.Len() != 0 {
		t.Fatalf("len after hush = %d", r.Len())
	}
}

func TestClearEmptySlotIsNoop(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.OnChange(func([]string) { calls++ })
	removed, err := r.Clear("d2")
	if err != nil || removed {
		t.Fatalf("clear empty = %v, %v", removed, err)
	}
	if calls != 0 {
		t.Fatalf("change hook fired %d times for a no-op", calls)
	}
	_ = r.Set("d2", newPattern(t, "bd"))
	removed, _ = r.Clear("d2")
	if !removed || calls != 2 {
		t.Fatalf("removed = %v, calls = %d", removed, calls)
	}
}

func TestSetNilClears(t *testing.T) {
	r := NewRegistry()
	_ = r.Set("d4", newPattern(t, "bd"))
	if err := r.Set("d4", nil); err != nil {
		t.Fatalf("set nil: %v", err)
	}
	if r.Get("d4") != nil {
		t.Fatal("slot should be empty")
	}
}

func TestUnknownSlot(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"d0", "d10", "x1", "d01", ""} {
		if err := r.Set(name, newPattern(t, "bd")); err == nil {
			t.Errorf("set %q: expected error", name)
		}
	}
}

func TestBindingsOrderedAndNextFree(t *testing.T) {
	r := NewRegistry()
	_ = r.Set("d3", newPattern(t, "bd"))
	_ = r.Set("d1", newPattern(t, "sd"))
	if got := r.Active(); !reflect.DeepEqual(got, []string{"d1", "d3"}) {
		t.Fatalf("active = %v", got)
	}
	if got := r.NextFree(); got != "d2" {
		t.Fatalf("next free = %q, want d2", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	p := newPattern(t, "bd sd")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = r.Set("d1", p)
				r.Hush()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, b := range r.Bindings() {
					if b.Pattern == nil {
						t.Error("snapshot contained a nil pattern")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
