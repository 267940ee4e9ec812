package controller

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/metrics"
)

// Operator-facing messages.
const (
	MsgDraftIncomplete = "Domain and IP are required"
	MsgListFailed      = "Failed to fetch records"
	MsgUnreachable     = "Failed to connect to API server"
	MsgCreateFailed    = "Failed to add record"
	MsgDeleteFailed    = "Failed to delete record"
)

// State is a snapshot of everything the console renders.
type State struct {
	// Revision increases on every state change; a snapshot with a higher
	// revision is always newer.
	Revision uint64

	Loading bool
	// Records is the payload of the last applied list response, in store order.
	Records []dns.Record
	// Error is the single live operator-facing error; empty when none.
	Error string
	// ErrorOp is the store operation (dns.OpList, dns.OpCreate or
	// dns.OpDelete) that produced Error. A create or delete that succeeded
	// but whose reload failed leaves dns.OpList here.
	ErrorOp string

	FormOpen bool
	Draft    dns.Draft

	// PendingRemoval is the domain awaiting delete confirmation.
	PendingRemoval string
}

func (s *State) setError(op, msg string) {
	s.Error = msg
	s.ErrorOp = op
}

// Confirmer decides whether a delete may go ahead.
type Confirmer interface {
	Confirm(domain string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(domain string) bool

func (f ConfirmFunc) Confirm(domain string) bool { return f(domain) }

// RecordSyncController keeps the local record view consistent with the
// record store. Mutations are never applied locally; each successful create
// or delete is followed by a full reload.
//
// Operations block until the store answers and return the resulting State.
// They never return errors: failures land in State.Error.
type RecordSyncController struct {
	Store dns.Store
	Log   logr.Logger
	// AllowStaleResponses restores last-response-wins for overlapping loads.
	AllowStaleResponses bool
	// OnChange, if set, receives a snapshot after every state change. It is
	// called without the controller lock held and may be called concurrently.
	OnChange func(State)

	mu       sync.Mutex
	state    State
	inflight int
	issued   uint64 // sequence number of the latest started load
	applied  uint64 // sequence number of the latest applied load
}

// State returns the current snapshot.
func (c *RecordSyncController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// snapshot copies the state. Caller holds c.mu.
func (c *RecordSyncController) snapshot() State {
	s := c.state
	s.Records = slices.Clone(c.state.Records)
	return s
}

// commit bumps the revision and returns the snapshot to publish. Caller holds c.mu.
func (c *RecordSyncController) commit() State {
	c.state.Revision++
	return c.snapshot()
}

func (c *RecordSyncController) publish(s State) State {
	if c.OnChange != nil {
		c.OnChange(s)
	}
	return s
}

// update applies fn under the lock and publishes the result.
func (c *RecordSyncController) update(fn func(s *State)) State {
	c.mu.Lock()
	fn(&c.state)
	s := c.commit()
	c.mu.Unlock()
	return c.publish(s)
}

// Load replaces the record set with the store's current list.
func (c *RecordSyncController) Load(ctx context.Context) State {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inflight++
	c.state.Loading = true
	started := c.commit()
	c.mu.Unlock()
	c.publish(started)

	records, err := c.Store.List(ctx)

	c.mu.Lock()
	c.inflight--
	stale := !c.AllowStaleResponses && seq < c.applied
	switch {
	case stale:
		metrics.StaleResponsesDiscarded.Inc()
		c.Log.V(1).Info("discarding stale list response", "seq", seq, "applied", c.applied)
	case err != nil:
		c.applied = seq
		c.state.setError(dns.OpList, c.failureMessage(err, MsgListFailed, MsgUnreachable))
	default:
		c.applied = seq
		if records == nil {
			records = []dns.Record{}
		}
		c.state.Records = records
		c.state.setError("", "")
		c.Log.V(1).Info("records synchronized", "count", len(records), "seq", seq)
	}
	if c.AllowStaleResponses {
		c.state.Loading = false
	} else {
		c.state.Loading = c.inflight > 0
	}
	done := c.commit()
	c.mu.Unlock()
	return c.publish(done)
}

// Create submits draft as a new record. An incomplete draft sets the error
// without contacting the store. On success the form closes, the draft is
// discarded and the record set is reloaded; on failure form and draft stay.
func (c *RecordSyncController) Create(ctx context.Context, draft dns.Draft) State {
	if err := draft.Validate(); err != nil {
		return c.update(func(s *State) {
			s.Draft = draft
			s.setError(dns.OpCreate, MsgDraftIncomplete)
		})
	}

	c.update(func(s *State) { s.Draft = draft })

	record := draft.Record()
	if err := c.Store.Create(ctx, record); err != nil {
		return c.update(func(s *State) {
			s.setError(dns.OpCreate, c.failureMessage(err, MsgCreateFailed, MsgCreateFailed))
		})
	}

	c.Log.Info("record created, reloading", "domain", record.Domain)
	c.update(func(s *State) {
		s.Draft = dns.Draft{}
		s.FormOpen = false
		s.setError("", "")
	})
	return c.Load(ctx)
}

// Remove deletes domain after confirm agrees. A declined or missing
// confirmation changes nothing.
func (c *RecordSyncController) Remove(ctx context.Context, domain string, confirm Confirmer) State {
	if confirm == nil || !confirm.Confirm(domain) {
		c.Log.V(1).Info("removal declined", "domain", domain)
		return c.State()
	}
	c.RequestRemoval(domain)
	return c.ConfirmRemoval(ctx)
}

// RequestRemoval marks domain as awaiting confirmation. No request is sent.
func (c *RecordSyncController) RequestRemoval(domain string) State {
	return c.update(func(s *State) { s.PendingRemoval = domain })
}

// CancelRemoval drops the pending removal, if any.
func (c *RecordSyncController) CancelRemoval() State {
	c.mu.Lock()
	if c.state.PendingRemoval == "" {
		s := c.snapshot()
		c.mu.Unlock()
		return s
	}
	c.state.PendingRemoval = ""
	s := c.commit()
	c.mu.Unlock()
	return c.publish(s)
}

// ConfirmRemoval deletes the pending domain and reloads on success. Without a
// pending removal it does nothing.
func (c *RecordSyncController) ConfirmRemoval(ctx context.Context) State {
	c.mu.Lock()
	domain := c.state.PendingRemoval
	if domain == "" {
		s := c.snapshot()
		c.mu.Unlock()
		return s
	}
	c.state.PendingRemoval = ""
	s := c.commit()
	c.mu.Unlock()
	c.publish(s)

	if err := c.Store.Delete(ctx, domain); err != nil {
		return c.update(func(s *State) {
			s.setError(dns.OpDelete, c.failureMessage(err, MsgDeleteFailed, MsgDeleteFailed))
		})
	}

	c.Log.Info("record deleted, reloading", "domain", domain)
	c.update(func(s *State) { s.setError("", "") })
	return c.Load(ctx)
}

// DismissError clears the error. Without an error it does nothing.
func (c *RecordSyncController) DismissError() State {
	c.mu.Lock()
	if c.state.Error == "" {
		s := c.snapshot()
		c.mu.Unlock()
		return s
	}
	c.state.setError("", "")
	s := c.commit()
	c.mu.Unlock()
	return c.publish(s)
}

// OpenForm shows the add form, keeping any draft.
func (c *RecordSyncController) OpenForm() State {
	return c.update(func(s *State) { s.FormOpen = true })
}

// CloseForm hides the add form and discards the draft.
func (c *RecordSyncController) CloseForm() State {
	return c.update(func(s *State) {
		s.FormOpen = false
		s.Draft = dns.Draft{}
	})
}

// ToggleForm opens a closed form and cancels an open one.
func (c *RecordSyncController) ToggleForm() State {
	if c.State().FormOpen {
		return c.CloseForm()
	}
	return c.OpenForm()
}

// failureMessage maps a store error to the operator-facing text. Transport
// failures are logged here, the only place their cause is kept.
func (c *RecordSyncController) failureMessage(err error, fallback, unreachable string) string {
	var lf *dns.LogicalFailure
	if errors.As(err, &lf) {
		c.Log.Info("record store rejected operation", "op", lf.Op, "status", lf.StatusCode, "message", lf.Message)
		if lf.Message != "" {
			return lf.Message
		}
		return fallback
	}
	c.Log.Error(err, "record store unreachable")
	return unreachable
}
