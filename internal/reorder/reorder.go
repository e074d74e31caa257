// Package reorder turns drag gestures into permutations of an asset list.
package reorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// Move returns a copy of order with movedID relocated to targetIndex. The
// relative order of every other ID is preserved. targetIndex is the index
// the moved ID has in the result.
func Move(order []string, movedID string, targetIndex int) ([]string, error) {
	from := indexOf(order, movedID)
	if from < 0 {
		return nil, apperrors.NotFound("asset", movedID)
	}
	if targetIndex < 0 || targetIndex >= len(order) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("target index %d is outside [0, %d)", targetIndex, len(order)))
	}

	out := make([]string, 0, len(order))
	out = append(out, order[:from]...)
	out = append(out, order[from+1:]...)
	out = append(out[:targetIndex], append([]string{movedID}, out[targetIndex:]...)...)
	return out, nil
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// List is the part of the asset list a drag gesture drives.
type List interface {
	Order() []string
	Reorder(ctx context.Context, id string, targetIndex int) error
}

// Controller tracks one drag gesture at a time. Hover positions are local
// state; only Drop proposes a mutation to the list.
type Controller struct {
	list   List
	logger *slog.Logger

	mu     sync.Mutex
	active string
	over   int
}

// NewController creates a controller for list.
func NewController(list List, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{list: list, logger: logger, over: -1}
}

// Start begins dragging id. Starting a new drag abandons the previous one.
func (c *Controller) Start(id string) error {
	from := indexOf(c.list.Order(), id)
	if from < 0 {
		return apperrors.NotFound("asset", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.active, c.over = id, from
	return nil
}

// Over records the index the dragged asset currently hovers. Indexes
// outside the list are clamped when previewed or dropped.
func (c *Controller) Over(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == "" {
		return apperrors.InvalidState("no drag in progress")
	}
	c.over = index
	return nil
}

// Preview returns the order the list would have if the gesture were dropped now.
func (c *Controller) Preview() ([]string, error) {
	c.mu.Lock()
	id, over := c.active, c.over
	c.mu.Unlock()

	order := c.list.Order()
	if id == "" {
		return order, nil
	}
	return Move(order, id, clampIndex(over, len(order)))
}

// Drop ends the gesture and asks the list to move the asset to the hovered
// index, clamped to the list as it is now. Dropping onto the asset's
// current position is a no-op.
func (c *Controller) Drop(ctx context.Context) error {
	c.mu.Lock()
	id, over := c.active, c.over
	c.active, c.over = "", -1
	c.mu.Unlock()

	if id == "" {
		return apperrors.InvalidState("no drag in progress")
	}

	order := c.list.Order()
	from := indexOf(order, id)
	if from < 0 {
		return apperrors.NotFound("asset", id)
	}
	to := clampIndex(over, len(order))
	if to == from {
		return nil
	}

	if err := c.list.Reorder(ctx, id, to); err != nil {
		return fmt.Errorf("drop %s at %d: %w", id, to, err)
	}
	c.logger.DebugContext(ctx, "asset reordered",
		slog.String("asset_id", id),
		slog.Int("from", from),
		slog.Int("to", to),
	)
	return nil
}

// Cancel abandons the gesture without touching the list.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active, c.over = "", -1
}

// Active returns the ID being dragged, or "".
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
