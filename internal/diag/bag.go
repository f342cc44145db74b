package diag

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Bag collects the diagnostics of one document up to a limit.
type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag returns a bag that holds at most max diagnostics; max <= 0 means
// unlimited.
func NewBag(max int) *Bag {
	capacity := max
	if capacity <= 0 || capacity > 64 {
		capacity = 16
	}
	return &Bag{
		items: make([]Diagnostic, 0, capacity),
		max:   max,
	}
}

// Add appends d unless the limit is reached. It returns false when d was
// dropped.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// AddAll adds diagnostics in order until the limit is reached and returns
// the number dropped.
func (b *Bag) AddAll(list []Diagnostic) int {
	dropped := 0
	for _, d := range list {
		if !b.Add(d) {
			dropped++
		}
	}
	return dropped
}

// HasErrors reports whether any diagnostic has error severity.
func (b *Bag) HasErrors() bool {
	for i := range b.items {
		if b.items[i].Severity == SevError {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns the collected diagnostics. The slice aliases the bag's
// storage; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Sort orders diagnostics by start, end, severity (errors first) and code.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Range.Start != dj.Range.Start {
			return positionLess(di.Range.Start, dj.Range.Start)
		}
		if di.Range.End != dj.Range.End {
			return positionLess(di.Range.End, dj.Range.End)
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		return di.Code < dj.Code
	})
}

// Dedup drops diagnostics that repeat the range, severity, code and message
// of an earlier one. Messages are compared under canonical equivalence
// (NFC); the first spelling is kept.
func (b *Bag) Dedup() {
	seen := make(map[string]struct{}, len(b.items))
	kept := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%s|%d|%s|%s", d.Range, d.Severity, d.Code, norm.NFC.String(d.Message))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, d)
	}
	b.items = kept
}

func positionLess(a, b Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
