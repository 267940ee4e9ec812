package controller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// mockStore records store calls for test assertions.
type mockStore struct {
	mu        sync.Mutex
	records   []dns.Record
	listErr   error
	createErr error
	deleteErr error
	// listFunc, when set, replaces the default List behaviour. call is 1-based.
	listFunc func(ctx context.Context, call int) ([]dns.Record, error)

	listCalls int
	created   []dns.Record
	deleted   []string
}

func (m *mockStore) List(ctx context.Context) ([]dns.Record, error) {
	m.mu.Lock()
	m.listCalls++
	call := m.listCalls
	fn := m.listFunc
	records, err := m.records, m.listErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, call)
	}
	return records, err
}

func (m *mockStore) Create(_ context.Context, record dns.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, record)
	return m.createErr
}

func (m *mockStore) Delete(_ context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, domain)
	return m.deleteErr
}

func (m *mockStore) calls() (list int, created []dns.Record, deleted []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls, append([]dns.Record(nil), m.created...), append([]string(nil), m.deleted...)
}

func newController(store dns.Store) *RecordSyncController {
	return &RecordSyncController{
		Store: store,
		Log:   zap.New(zap.UseDevMode(true)),
	}
}

var errRefused = &dns.TransportFailure{Op: dns.OpList, Err: errors.New("dial tcp: connection refused")}

func TestLoad_Success(t *testing.T) {
	mock := &mockStore{records: []dns.Record{{Domain: "a.local", IP: "10.0.0.1", TTL: -1}}}
	c := newController(mock)

	s := c.Load(context.Background())

	want := []dns.Record{{Domain: "a.local", IP: "10.0.0.1", TTL: -1}}
	if !reflect.DeepEqual(s.Records, want) {
		t.Errorf("expected records %+v, got %+v", want, s.Records)
	}
	if s.Loading {
		t.Error("expected loading to be false")
	}
	if s.Error != "" {
		t.Errorf("expected no error, got %q", s.Error)
	}
}

func TestLoad_AbsentDataClearsError(t *testing.T) {
	mock := &mockStore{listErr: &dns.LogicalFailure{Op: dns.OpList, Message: "boom"}}
	c := newController(mock)

	if s := c.Load(context.Background()); s.Error != "boom" {
		t.Fatalf("expected error 'boom', got %q", s.Error)
	}

	mock.mu.Lock()
	mock.listErr = nil
	mock.records = nil
	mock.mu.Unlock()

	s := c.Load(context.Background())
	if s.Records == nil || len(s.Records) != 0 {
		t.Errorf("expected empty non-nil record set, got %#v", s.Records)
	}
	if s.Error != "" {
		t.Errorf("expected error cleared, got %q", s.Error)
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"logical with message", &dns.LogicalFailure{Op: dns.OpList, Message: "Redis connection not available", StatusCode: 500}, "Redis connection not available"},
		{"logical without message", &dns.LogicalFailure{Op: dns.OpList, StatusCode: 500}, MsgListFailed},
		{"transport", errRefused, MsgUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{records: []dns.Record{{Domain: "a.local", IP: "10.0.0.1"}}}
			c := newController(mock)
			c.Load(context.Background())

			mock.mu.Lock()
			mock.listErr = tt.err
			mock.records = nil
			mock.mu.Unlock()

			s := c.Load(context.Background())
			if s.Error != tt.wantMsg {
				t.Errorf("expected error %q, got %q", tt.wantMsg, s.Error)
			}
			if s.Loading {
				t.Error("expected loading to end false")
			}
			if len(s.Records) != 1 || s.Records[0].Domain != "a.local" {
				t.Errorf("expected previous records kept, got %+v", s.Records)
			}
		})
	}
}

func TestCreate_IncompleteDraft(t *testing.T) {
	drafts := []dns.Draft{
		{Domain: "", IP: "10.0.0.2"},
		{Domain: "b.local", IP: ""},
		{Domain: "  ", IP: "10.0.0.2"},
		{Domain: "b.local", IP: "\t"},
	}

	for _, d := range drafts {
		mock := &mockStore{}
		c := newController(mock)
		c.OpenForm()

		s := c.Create(context.Background(), d)

		list, created, _ := mock.calls()
		if len(created) != 0 || list != 0 {
			t.Errorf("draft %+v: expected no remote call, got %d creates and %d lists", d, len(created), list)
		}
		if s.Error != MsgDraftIncomplete {
			t.Errorf("draft %+v: expected error %q, got %q", d, MsgDraftIncomplete, s.Error)
		}
		if !s.FormOpen {
			t.Errorf("draft %+v: expected form to stay open", d)
		}
		if s.Draft != d {
			t.Errorf("expected draft %+v kept, got %+v", d, s.Draft)
		}
	}
}

func TestCreate_SuccessReloads(t *testing.T) {
	mock := &mockStore{}
	c := newController(mock)
	c.OpenForm()

	mock.mu.Lock()
	mock.records = []dns.Record{{Domain: "b.local", IP: "10.0.0.2", TTL: -1}}
	mock.mu.Unlock()

	s := c.Create(context.Background(), dns.Draft{Domain: " b.local ", IP: "10.0.0.2 "})

	list, created, _ := mock.calls()
	if len(created) != 1 {
		t.Fatalf("expected 1 created record, got %d", len(created))
	}
	want := dns.Record{Domain: "b.local", IP: "10.0.0.2", TTL: -1}
	if created[0] != want {
		t.Errorf("expected payload %+v, got %+v", want, created[0])
	}
	if list != 1 {
		t.Errorf("expected exactly 1 reload, got %d", list)
	}
	if s.FormOpen {
		t.Error("expected form closed")
	}
	if !s.Draft.IsZero() {
		t.Errorf("expected draft discarded, got %+v", s.Draft)
	}
	if s.Error != "" {
		t.Errorf("expected no error, got %q", s.Error)
	}
	if len(s.Records) != 1 || s.Records[0].Domain != "b.local" {
		t.Errorf("expected reloaded records, got %+v", s.Records)
	}
}

func TestCreate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"logical with message", &dns.LogicalFailure{Op: dns.OpCreate, Message: "Invalid IP address", StatusCode: 400}, "Invalid IP address"},
		{"logical without message", &dns.LogicalFailure{Op: dns.OpCreate, StatusCode: 500}, MsgCreateFailed},
		{"transport", &dns.TransportFailure{Op: dns.OpCreate, Err: errors.New("EOF")}, MsgCreateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{createErr: tt.err}
			c := newController(mock)
			c.OpenForm()

			draft := dns.Draft{Domain: "b.local", IP: "10.0.0.300"}
			s := c.Create(context.Background(), draft)

			if s.Error != tt.wantMsg {
				t.Errorf("expected error %q, got %q", tt.wantMsg, s.Error)
			}
			if !s.FormOpen {
				t.Error("expected form to stay open")
			}
			if s.Draft != draft {
				t.Errorf("expected draft %+v intact, got %+v", draft, s.Draft)
			}
			if list, _, _ := mock.calls(); list != 0 {
				t.Errorf("expected no reload after failure, got %d", list)
			}
		})
	}
}

type countingConfirmer struct {
	answer bool
	asked  []string
}

func (c *countingConfirmer) Confirm(domain string) bool {
	c.asked = append(c.asked, domain)
	return c.answer
}

func TestRemove_Declined(t *testing.T) {
	mock := &mockStore{records: []dns.Record{{Domain: "a.local", IP: "10.0.0.1"}}}
	c := newController(mock)
	before := c.Load(context.Background())

	confirm := &countingConfirmer{answer: false}
	s := c.Remove(context.Background(), "a.local", confirm)

	list, _, deleted := mock.calls()
	if len(deleted) != 0 {
		t.Errorf("expected no delete call, got %v", deleted)
	}
	if list != 1 {
		t.Errorf("expected no extra list call, got %d", list)
	}
	if !reflect.DeepEqual(s, before) {
		t.Errorf("expected state unchanged,\nbefore %+v\nafter  %+v", before, s)
	}
	if len(confirm.asked) != 1 || confirm.asked[0] != "a.local" {
		t.Errorf("expected confirmation asked for a.local, got %v", confirm.asked)
	}
}

func TestRemove_NilConfirmer(t *testing.T) {
	mock := &mockStore{}
	c := newController(mock)

	c.Remove(context.Background(), "a.local", nil)

	if _, _, deleted := mock.calls(); len(deleted) != 0 {
		t.Errorf("expected no delete without confirmation, got %v", deleted)
	}
}

func TestRemove_ConfirmedReloads(t *testing.T) {
	mock := &mockStore{records: []dns.Record{{Domain: "a.local", IP: "10.0.0.1"}}}
	c := newController(mock)
	c.Load(context.Background())

	mock.mu.Lock()
	mock.records = []dns.Record{}
	mock.mu.Unlock()

	s := c.Remove(context.Background(), "a.local", ConfirmFunc(func(string) bool { return true }))

	list, _, deleted := mock.calls()
	if len(deleted) != 1 || deleted[0] != "a.local" {
		t.Fatalf("expected delete of a.local, got %v", deleted)
	}
	if list != 2 {
		t.Errorf("expected exactly one reload after delete, got %d list calls", list)
	}
	if len(s.Records) != 0 {
		t.Errorf("expected reloaded empty set, got %+v", s.Records)
	}
	if s.PendingRemoval != "" {
		t.Errorf("expected no pending removal, got %q", s.PendingRemoval)
	}
}

func TestRemove_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"not found", &dns.LogicalFailure{Op: dns.OpDelete, Message: "not found", StatusCode: 404}, "not found"},
		{"logical without message", &dns.LogicalFailure{Op: dns.OpDelete, StatusCode: 500}, MsgDeleteFailed},
		{"transport", &dns.TransportFailure{Op: dns.OpDelete, Err: errors.New("reset by peer")}, MsgDeleteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{records: []dns.Record{{Domain: "a.local", IP: "10.0.0.1", TTL: -1}}}
			c := newController(mock)
			before := c.Load(context.Background())

			mock.mu.Lock()
			mock.deleteErr = tt.err
			mock.mu.Unlock()

			s := c.Remove(context.Background(), "a.local", ConfirmFunc(func(string) bool { return true }))

			if s.Error != tt.wantMsg {
				t.Errorf("expected error %q, got %q", tt.wantMsg, s.Error)
			}
			if !reflect.DeepEqual(s.Records, before.Records) {
				t.Errorf("expected records unchanged, got %+v", s.Records)
			}
			if list, _, _ := mock.calls(); list != 1 {
				t.Errorf("expected no reload after failed delete, got %d list calls", list)
			}
		})
	}
}

func TestRemovalProtocol(t *testing.T) {
	mock := &mockStore{}
	c := newController(mock)

	if s := c.ConfirmRemoval(context.Background()); s.Revision != 0 {
		t.Errorf("expected confirm without request to be a no-op, got revision %d", s.Revision)
	}

	s := c.RequestRemoval("a.local")
	if s.PendingRemoval != "a.local" {
		t.Fatalf("expected pending removal a.local, got %q", s.PendingRemoval)
	}
	if _, _, deleted := mock.calls(); len(deleted) != 0 {
		t.Fatalf("expected no delete before confirmation, got %v", deleted)
	}

	s = c.CancelRemoval()
	if s.PendingRemoval != "" {
		t.Errorf("expected pending removal cleared, got %q", s.PendingRemoval)
	}
	if _, _, deleted := mock.calls(); len(deleted) != 0 {
		t.Errorf("expected no delete after cancel, got %v", deleted)
	}

	c.RequestRemoval("b.local")
	c.ConfirmRemoval(context.Background())
	if _, _, deleted := mock.calls(); len(deleted) != 1 || deleted[0] != "b.local" {
		t.Errorf("expected delete of b.local, got %v", deleted)
	}
}

func TestDismissError(t *testing.T) {
	var notified int
	c := newController(&mockStore{})
	c.OnChange = func(State) { notified++ }

	// No error: nothing happens.
	s := c.DismissError()
	if s.Revision != 0 || notified != 0 {
		t.Errorf("expected no-op, got revision %d and %d notifications", s.Revision, notified)
	}

	c.Create(context.Background(), dns.Draft{})
	before := notified

	s = c.DismissError()
	if s.Error != "" {
		t.Errorf("expected error cleared, got %q", s.Error)
	}
	if notified != before+1 {
		t.Errorf("expected one notification, got %d", notified-before)
	}

	again := c.DismissError()
	if again.Revision != s.Revision {
		t.Errorf("expected second dismiss to be a no-op, revision %d -> %d", s.Revision, again.Revision)
	}
}

func TestFormToggle(t *testing.T) {
	c := newController(&mockStore{})

	if s := c.ToggleForm(); !s.FormOpen {
		t.Fatal("expected form open after first toggle")
	}
	c.Create(context.Background(), dns.Draft{Domain: "half"})
	if s := c.State(); s.Draft.Domain != "half" {
		t.Fatalf("expected draft kept after failed validation, got %+v", s.Draft)
	}

	s := c.ToggleForm()
	if s.FormOpen {
		t.Error("expected form closed after second toggle")
	}
	if !s.Draft.IsZero() {
		t.Errorf("expected draft discarded on cancel, got %+v", s.Draft)
	}
}

func TestOnChange_ObservesLoading(t *testing.T) {
	mock := &mockStore{records: []dns.Record{{Domain: "a.local", IP: "10.0.0.1"}}}
	c := newController(mock)

	var mu sync.Mutex
	var seen []State
	c.OnChange = func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	}

	c.Load(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if !seen[0].Loading || seen[1].Loading {
		t.Errorf("expected loading true then false, got %v then %v", seen[0].Loading, seen[1].Loading)
	}
	if seen[1].Revision <= seen[0].Revision {
		t.Errorf("expected increasing revisions, got %d then %d", seen[0].Revision, seen[1].Revision)
	}
}

// overlappingLoads starts a slow load, then a fast one, then lets the slow
// one finish with older data.
func overlappingLoads(t *testing.T, c *RecordSyncController, mock *mockStore) State {
	t.Helper()

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	mock.listFunc = func(_ context.Context, call int) ([]dns.Record, error) {
		if call == 1 {
			close(slowStarted)
			<-releaseSlow
			return []dns.Record{{Domain: "old.local", IP: "10.0.0.1"}}, nil
		}
		return []dns.Record{{Domain: "new.local", IP: "10.0.0.2"}}, nil
	}

	slowDone := make(chan State)
	go func() { slowDone <- c.Load(context.Background()) }()

	select {
	case <-slowStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("slow load never started")
	}

	fast := c.Load(context.Background())
	if len(fast.Records) != 1 || fast.Records[0].Domain != "new.local" {
		t.Fatalf("expected fast load applied, got %+v", fast.Records)
	}

	close(releaseSlow)
	select {
	case s := <-slowDone:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("slow load never finished")
	}
	return State{}
}

func TestLoad_DiscardsStaleResponse(t *testing.T) {
	mock := &mockStore{}
	c := newController(mock)

	s := overlappingLoads(t, c, mock)

	if len(s.Records) != 1 || s.Records[0].Domain != "new.local" {
		t.Errorf("expected newer response to win, got %+v", s.Records)
	}
	if s.Loading {
		t.Error("expected loading false once both loads ended")
	}
}

func TestLoad_LoadingHeldWhileOverlapping(t *testing.T) {
	mock := &mockStore{}
	c := newController(mock)

	release := make(chan struct{})
	started := make(chan struct{})
	mock.listFunc = func(_ context.Context, call int) ([]dns.Record, error) {
		if call == 1 {
			close(started)
			<-release
		}
		return []dns.Record{}, nil
	}

	done := make(chan struct{})
	go func() {
		c.Load(context.Background())
		close(done)
	}()
	<-started

	if s := c.Load(context.Background()); !s.Loading {
		t.Error("expected loading to stay true while another load is in flight")
	}

	close(release)
	<-done
	if c.State().Loading {
		t.Error("expected loading false after all loads ended")
	}
}

func TestLoad_AllowStaleResponses(t *testing.T) {
	mock := &mockStore{}
	c := newController(mock)
	c.AllowStaleResponses = true

	s := overlappingLoads(t, c, mock)

	if len(s.Records) != 1 || s.Records[0].Domain != "old.local" {
		t.Errorf("expected last response to land to win, got %+v", s.Records)
	}
	if s.Loading {
		t.Error("expected loading false")
	}
}

func TestLoad_DiscardLogger(t *testing.T) {
	c := &RecordSyncController{Store: &mockStore{listErr: errRefused}, Log: logr.Discard()}

	if s := c.Load(context.Background()); s.Error != MsgUnreachable {
		t.Errorf("expected %q, got %q", MsgUnreachable, s.Error)
	}
}

func TestErrorOp(t *testing.T) {
	rejected := &dns.LogicalFailure{Op: dns.OpCreate, Message: "Invalid IP address", StatusCode: 400}

	tests := []struct {
		name   string
		mock   *mockStore
		run    func(c *RecordSyncController) State
		wantOp string
	}{
		{
			name:   "list failure",
			mock:   &mockStore{listErr: errRefused},
			run:    func(c *RecordSyncController) State { return c.Load(context.Background()) },
			wantOp: dns.OpList,
		},
		{
			name:   "incomplete draft",
			mock:   &mockStore{},
			run:    func(c *RecordSyncController) State { return c.Create(context.Background(), dns.Draft{Domain: "a.local"}) },
			wantOp: dns.OpCreate,
		},
		{
			name:   "create rejected",
			mock:   &mockStore{createErr: rejected},
			run:    func(c *RecordSyncController) State { return c.Create(context.Background(), dns.Draft{Domain: "a.local", IP: "x"}) },
			wantOp: dns.OpCreate,
		},
		{
			name: "delete rejected",
			mock: &mockStore{deleteErr: &dns.LogicalFailure{Op: dns.OpDelete, Message: "DNS record not found", StatusCode: 404}},
			run: func(c *RecordSyncController) State {
				c.RequestRemoval("a.local")
				return c.ConfirmRemoval(context.Background())
			},
			wantOp: dns.OpDelete,
		},
		{
			name:   "created but reload failed",
			mock:   &mockStore{listErr: errRefused},
			run:    func(c *RecordSyncController) State { return c.Create(context.Background(), dns.Draft{Domain: "a.local", IP: "10.0.0.1"}) },
			wantOp: dns.OpList,
		},
		{
			name: "deleted but reload failed",
			mock: &mockStore{listErr: errRefused},
			run: func(c *RecordSyncController) State {
				return c.Remove(context.Background(), "a.local", ConfirmFunc(func(string) bool { return true }))
			},
			wantOp: dns.OpList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.run(newController(tt.mock))
			if s.Error == "" {
				t.Fatal("expected an error")
			}
			if s.ErrorOp != tt.wantOp {
				t.Errorf("expected error op %q, got %q", tt.wantOp, s.ErrorOp)
			}
		})
	}
}

func TestDismissError_ClearsErrorOp(t *testing.T) {
	c := newController(&mockStore{listErr: errRefused})
	c.Load(context.Background())

	s := c.DismissError()
	if s.Error != "" || s.ErrorOp != "" {
		t.Errorf("expected error and op cleared, got %q / %q", s.Error, s.ErrorOp)
	}
}
