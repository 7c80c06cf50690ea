package service

import (
	"sync"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// SelectionTracker holds the cart lines marked for checkout. It is session-local intent:
// it only changes on explicit commands or when a line disappears from the cart.
type SelectionTracker struct {
	mu       sync.Mutex
	lineIDs  []string
	selected map[string]struct{}
}

// NewSelectionTracker creates an empty tracker.
func NewSelectionTracker() *SelectionTracker {
	return &SelectionTracker{selected: make(map[string]struct{})}
}

// Toggle flips lineID's selection and returns whether it is now selected.
func (t *SelectionTracker) Toggle(lineID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.knownLocked(lineID) {
		return false, apperrors.NotFound("cart line", lineID)
	}
	if _, ok := t.selected[lineID]; ok {
		delete(t.selected, lineID)
		return false, nil
	}
	t.selected[lineID] = struct{}{}
	return true, nil
}

// SelectAll selects every current line.
func (t *SelectionTracker) SelectAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.lineIDs {
		t.selected[id] = struct{}{}
	}
}

// DeselectAll clears the selection.
func (t *SelectionTracker) DeselectAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = make(map[string]struct{})
}

// Selected returns the selected ids in cart order.
func (t *SelectionTracker) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.selected))
	for _, id := range t.lineIDs {
		if _, ok := t.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IsSelected reports whether lineID is selected.
func (t *SelectionTracker) IsSelected(lineID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.selected[lineID]
	return ok
}

// Reconcile replaces the known line ids and drops selected ids no longer present.
// Newly appearing lines are not selected.
func (t *SelectionTracker) Reconcile(lineIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lineIDs = append([]string(nil), lineIDs...)
	present := make(map[string]struct{}, len(lineIDs))
	for _, id := range lineIDs {
		present[id] = struct{}{}
	}
	for id := range t.selected {
		if _, ok := present[id]; !ok {
			delete(t.selected, id)
		}
	}
}

func (t *SelectionTracker) knownLocked(lineID string) bool {
	for _, id := range t.lineIDs {
		if id == lineID {
			return true
		}
	}
	return false
}
