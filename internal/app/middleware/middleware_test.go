package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

// --- Mocks ---

type scopedCmd struct {
	stay  string
	idKey string
	role  string
}

func (c scopedCmd) Key() string            { return "test.scoped" }
func (c scopedCmd) StayLockKey() string    { return c.stay }
func (c scopedCmd) IdempotencyKey() string { return c.idKey }
func (c scopedCmd) ResultPrototype() any   { return new(string) }
func (c scopedCmd) RequiredRole() string   { return c.role }

type traceLocker struct {
	mu    sync.Mutex
	trace *[]string
}

func (l *traceLocker) Lock(_ context.Context, stayID string) (func(), error) {
	l.mu.Lock()
	*l.trace = append(*l.trace, "lock:"+stayID)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		*l.trace = append(*l.trace, "unlock:"+stayID)
		l.mu.Unlock()
	}, nil
}

type traceUnit struct {
	trace *[]string
}

func (u *traceUnit) Stays() stays.Catalog                  { return nil }
func (u *traceUnit) Ledger() availability.Ledger           { return nil }
func (u *traceUnit) Reservations() reservations.Repository { return nil }
func (u *traceUnit) Commit(context.Context) error {
	*u.trace = append(*u.trace, "commit")
	return nil
}
func (u *traceUnit) Rollback(context.Context) error {
	*u.trace = append(*u.trace, "rollback")
	return nil
}

type traceFactory struct {
	trace *[]string
}

func (f traceFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	*f.trace = append(*f.trace, "begin")
	return &traceUnit{trace: f.trace}, nil
}

type mapStore struct {
	items   map[string]IdempotencyRecord
	saveErr error
}

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.items[rec.Key] = rec
	return nil
}

type funcBus func(ctx context.Context, cmd commands.Command) (any, error)

func (f funcBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) { return f(ctx, cmd) }

// --- Tests ---

func TestStayLockWrapsTransactionCommit(t *testing.T) {
	var trace []string
	base := funcBus(func(ctx context.Context, cmd commands.Command) (any, error) {
		if _, ok := uow.FromContext(ctx); !ok {
			t.Fatal("handler ran without a unit of work")
		}
		trace = append(trace, "handle")
		return "ok", nil
	})
	bus := ChainCommands(base,
		StayLock(&traceLocker{trace: &trace}),
		Transaction(traceFactory{trace: &trace}, nil),
	)
	if _, err := bus.Dispatch(context.Background(), scopedCmd{stay: "s1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	want := []string{"lock:s1", "begin", "handle", "commit", "unlock:s1"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	var trace []string
	boom := errors.New("boom")
	bus := ChainCommands(funcBus(func(context.Context, commands.Command) (any, error) {
		return nil, boom
	}), Transaction(traceFactory{trace: &trace}, nil))
	if _, err := bus.Dispatch(context.Background(), scopedCmd{}); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if len(trace) != 2 || trace[1] != "rollback" {
		t.Fatalf("want rollback, got %v", trace)
	}
}

func TestIdempotencyReplaysFinalOutcomesOnly(t *testing.T) {
	store := &mapStore{items: map[string]IdempotencyRecord{}}
	final := errors.New("final outcome")
	transient := errors.New("store down")

	calls := 0
	outcomes := []error{transient, final}
	bus := ChainCommands(funcBus(func(context.Context, commands.Command) (any, error) {
		err := outcomes[calls]
		calls++
		return nil, err
	}), Idempotency(store, nil, ReplayableErrors{final}, nil))

	cmd := scopedCmd{idKey: "k1"}
	if _, err := bus.Dispatch(context.Background(), cmd); !errors.Is(err, transient) {
		t.Fatalf("first: want transient, got %v", err)
	}
	if _, err := bus.Dispatch(context.Background(), cmd); !errors.Is(err, final) {
		t.Fatalf("second: want final, got %v", err)
	}
	if _, err := bus.Dispatch(context.Background(), cmd); !errors.Is(err, final) {
		t.Fatalf("replay: want final sentinel, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestIdempotencyReplaysResult(t *testing.T) {
	store := &mapStore{items: map[string]IdempotencyRecord{}}
	calls := 0
	bus := ChainCommands(funcBus(func(context.Context, commands.Command) (any, error) {
		calls++
		s := "r-1"
		return &s, nil
	}), Idempotency(store, nil, nil, nil))
	for i := 0; i < 2; i++ {
		res, err := commands.Dispatch[scopedCmd, *string](context.Background(), bus, scopedCmd{idKey: "k2"})
		if err != nil || res == nil || *res != "r-1" {
			t.Fatalf("dispatch %d: res=%v err=%v", i, res, err)
		}
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyKeepsResultWhenRecordFails(t *testing.T) {
	store := &mapStore{items: map[string]IdempotencyRecord{}, saveErr: errors.New("store down")}
	bus := ChainCommands(funcBus(func(context.Context, commands.Command) (any, error) {
		s := "r-1"
		return &s, nil
	}), Idempotency(store, nil, nil, nil))
	res, err := commands.Dispatch[scopedCmd, *string](context.Background(), bus, scopedCmd{idKey: "k3"})
	if err != nil || res == nil || *res != "r-1" {
		t.Fatalf("committed result lost: res=%v err=%v", res, err)
	}

	final := errors.New("final outcome")
	bus = ChainCommands(funcBus(func(context.Context, commands.Command) (any, error) {
		return nil, final
	}), Idempotency(store, nil, ReplayableErrors{final}, nil))
	if _, err := bus.Dispatch(context.Background(), scopedCmd{idKey: "k4"}); err != final {
		t.Fatalf("want the handler error unchanged, got %v", err)
	}
}

func TestRoleAuthorizer(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		role string
		want error
	}{
		{"open message", context.Background(), "", nil},
		{"anonymous", context.Background(), RoleHost, ErrUnauthenticated},
		{"wrong role", WithActor(context.Background(), Actor{ID: "u1", Role: RoleGuest}), RoleHost, ErrForbidden},
		{"matching role", WithActor(context.Background(), Actor{ID: "u1", Role: RoleHost}), RoleHost, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RoleAuthorizer{}.Authorize(tt.ctx, scopedCmd{role: tt.role})
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
}
