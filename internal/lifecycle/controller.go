// Package lifecycle mediates activity status changes. The backend stays
// authoritative: the controller validates the intended transition graph,
// sends the request, and only refreshes the displayed state after the backend
// confirms. It never mutates local state optimistically.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"campusline/internal/domain"
)

// ErrChangeInFlight is returned when a status change for the same activity is
// already awaiting backend confirmation.
var ErrChangeInFlight = errors.New("status change already in flight for this activity")

// StatusChanger is the slice of the collaborator API the controller drives.
type StatusChanger interface {
	ChangeActivityStatus(ctx context.Context, activityID int64, status string) error
}

// Notifier surfaces user-visible outcomes of a status change.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// Controller enforces the activity status lifecycle for one console session.
type Controller struct {
	api     StatusChanger
	refresh func(context.Context) error
	notify  Notifier

	mu       sync.Mutex
	inflight map[int64]bool
}

// New builds a controller. refresh is invoked exactly once after a confirmed
// status change so the view reflects backend-applied consequences (e.g.
// cascaded signup statuses). notify may be nil.
func New(api StatusChanger, refresh func(context.Context) error, notify Notifier) *Controller {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Controller{
		api:      api,
		refresh:  refresh,
		notify:   notify,
		inflight: make(map[int64]bool),
	}
}

// ChangeStatus validates and submits a status change for activity. On success
// it triggers one refresh and a success notification; on failure it surfaces
// the error and leaves the displayed status untouched. A second change for
// the same activity while one is pending returns ErrChangeInFlight; changes
// for different activities are independent.
func (c *Controller) ChangeStatus(ctx context.Context, activity domain.Activity, newStatus string, force bool) error {
	if err := ensureStatusTransition(activity.Status, newStatus, force); err != nil {
		c.notify.Error(err.Error())
		return err
	}
	if !c.begin(activity.ActivityID) {
		return ErrChangeInFlight
	}
	defer c.end(activity.ActivityID)

	if err := c.api.ChangeActivityStatus(ctx, activity.ActivityID, newStatus); err != nil {
		c.notify.Error(err.Error())
		return fmt.Errorf("change activity %d status: %w", activity.ActivityID, err)
	}
	c.notify.Success(fmt.Sprintf("activity %d is now %s", activity.ActivityID, newStatus))
	if c.refresh != nil {
		if err := c.refresh(ctx); err != nil {
			return fmt.Errorf("refresh after status change: %w", err)
		}
	}
	return nil
}

func (c *Controller) begin(activityID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[activityID] {
		return false
	}
	c.inflight[activityID] = true
	return true
}

func (c *Controller) end(activityID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, activityID)
}

// ensureStatusTransition checks the intended lifecycle graph. pending is the
// only legal initial state; completed and cancelled are conventionally
// terminal. force is the operator override: any known status is reachable,
// since the backend validates authoritatively.
func ensureStatusTransition(oldStatus, newStatus string, force bool) error {
	if !domain.KnownStatus(newStatus) {
		return fmt.Errorf("unknown activity status %q", newStatus)
	}
	if force {
		return nil
	}
	switch oldStatus {
	case domain.StatusPending:
		if newStatus == domain.StatusActive || newStatus == domain.StatusCancelled {
			return nil
		}
	case domain.StatusActive:
		if newStatus == domain.StatusCompleted || newStatus == domain.StatusCancelled {
			return nil
		}
	}
	return fmt.Errorf("invalid activity status transition %s -> %s", oldStatus, newStatus)
}
