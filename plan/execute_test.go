package plan

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/errors"
)

type config struct{ DSN string }

type pool struct {
	dsn  string
	refs *int
}

func (p *pool) Clone() any {
	*p.refs++
	return p
}

type repo struct {
	p   *pool
	cfg *config
}

func TestExecute_RunsInOrder(t *testing.T) {
	g := mustGraph(t,
		provide("t.Repo", "", decl.Exclusive, shared("t.Pool"), borrow("t.Config")),
		provide("t.Pool", "", decl.Shared, borrow("t.Config")),
		provide("t.Config", "", decl.Exclusive),
	)
	p := mustResolve(t, g, Request{Type: "t.Repo"})

	refs := 0
	var order []string
	ex := NewExecutor()
	ex.Provide(decl.Key{Type: "t.Config"}, func(ctx context.Context, args []any) (any, error) {
		order = append(order, "config")
		return config{DSN: "postgres://"}, nil
	})
	if err := ex.ProvideFunc(decl.Key{Type: "t.Pool"}, func(cfg *config) *pool {
		order = append(order, "pool")
		return &pool{dsn: cfg.DSN, refs: &refs}
	}); err != nil {
		t.Fatal(err)
	}
	if err := ex.ProvideFunc(decl.Key{Type: "t.Repo"}, func(ctx context.Context, p *pool, cfg *config) (repo, error) {
		order = append(order, "repo")
		return repo{p: p, cfg: cfg}, nil
	}); err != nil {
		t.Fatal(err)
	}

	res, err := ex.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Join(order, ",") != "config,pool,repo" {
		t.Errorf("unexpected order %v", order)
	}
	r, ok := res.Root.(repo)
	if !ok {
		t.Fatalf("expected repo root, got %T", res.Root)
	}
	if r.p.dsn != "postgres://" {
		t.Errorf("expected pool built from config, got %q", r.p.dsn)
	}
	if refs != 1 {
		t.Errorf("expected one clone for the one shared edge, got %d", refs)
	}
	if res.Completed != 3 {
		t.Errorf("expected 3 completed steps, got %d", res.Completed)
	}
}

func TestExecute_ShortCircuits(t *testing.T) {
	conn := provide("t.Conn", "", decl.Exclusive, on("t.Config"))
	conn.Fallible = true
	g := mustGraph(t,
		provide("t.App", "", decl.Exclusive, on("t.Conn")),
		conn,
		provide("t.Config", "", decl.Exclusive),
	)
	p := mustResolve(t, g, Request{Type: "t.App"})

	dialErr := stderrors.New("dial refused")
	var ran []string
	ex := NewExecutor().
		Provide(decl.Key{Type: "t.Config"}, func(context.Context, []any) (any, error) {
			ran = append(ran, "config")
			return config{}, nil
		}).
		Provide(decl.Key{Type: "t.Conn"}, func(context.Context, []any) (any, error) {
			ran = append(ran, "conn")
			return nil, dialErr
		}).
		Provide(decl.Key{Type: "t.App"}, func(context.Context, []any) (any, error) {
			ran = append(ran, "app")
			return "app", nil
		})

	res, err := ex.Execute(context.Background(), p)
	if err == nil {
		t.Fatal("expected execution to fail")
	}
	if !stderrors.Is(err, dialErr) {
		t.Errorf("expected the provider error to be surfaced, got %v", err)
	}
	var ce *ConstructionError
	if !stderrors.As(err, &ce) || ce.Key.Type != "t.Conn" || ce.Step != 1 {
		t.Errorf("expected construction error at step 1, got %v", err)
	}
	if ce.AppError().Code != errors.ErrCodeConstructionFailed {
		t.Errorf("expected CONSTRUCTION_FAILED, got %s", ce.AppError().Code)
	}
	if strings.Join(ran, ",") != "config,conn" {
		t.Errorf("app must not run after a failure, ran %v", ran)
	}
	if res.Completed != 1 || res.Values[0] == nil {
		t.Errorf("expected the earlier step to stay completed, got %+v", res)
	}
}

func TestExecute_MissingConstructor(t *testing.T) {
	g := mustGraph(t,
		provide("t.App", "", decl.Exclusive, on("t.Config")),
		provide("t.Config", "", decl.Exclusive),
	)
	p := mustResolve(t, g, Request{Type: "t.App"})

	ran := false
	ex := NewExecutor().Provide(decl.Key{Type: "t.Config"}, func(context.Context, []any) (any, error) {
		ran = true
		return config{}, nil
	})
	_, err := ex.Execute(context.Background(), p)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if ran {
		t.Error("no step may run when a constructor is missing")
	}
}

func TestExecute_BorrowPointsAtStoredValue(t *testing.T) {
	g := mustGraph(t,
		provide("t.App", "", decl.Exclusive, borrow("t.Config"), borrow("t.Config")),
		provide("t.Config", "", decl.Exclusive),
	)
	p := mustResolve(t, g, Request{Type: "t.App"})

	var got []*config
	ex := NewExecutor().
		Provide(decl.Key{Type: "t.Config"}, func(context.Context, []any) (any, error) { return config{DSN: "x"}, nil }).
		Provide(decl.Key{Type: "t.App"}, func(_ context.Context, args []any) (any, error) {
			got = []*config{args[0].(*config), args[1].(*config)}
			return nil, nil
		})
	if _, err := ex.Execute(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got[0] != got[1] || got[0].DSN != "x" {
		t.Error("expected both borrows to point at the same stored value")
	}
}

func TestFunc_Validation(t *testing.T) {
	tests := []struct {
		name    string
		fn      any
		wantErr bool
	}{
		{"not a function", 42, true},
		{"no results", func() {}, true},
		{"non-error second result", func() (int, int) { return 0, 0 }, true},
		{"value", func() int { return 1 }, false},
		{"value and error", func() (int, error) { return 1, nil }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Func(tt.fn)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFunc_ArgumentMismatch(t *testing.T) {
	c, err := Func(func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c(context.Background(), []any{42}); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := c(context.Background(), nil); err == nil {
		t.Error("expected arity error")
	}
	v, err := c(context.Background(), []any{"ok"})
	if err != nil || v != "ok" {
		t.Errorf("got (%v, %v)", v, err)
	}
}

type finder interface{ Find() string }

type pgRepo struct{ dsn string }

func (r pgRepo) Find() string { return r.dsn }

func TestExecute_InterfaceValues(t *testing.T) {
	log := provide("t.Log", "", decl.Shared)
	log.Expr = "t.Log"
	g := boundGraph(t,
		provide("t.Users", "", decl.Exclusive, shared("t.Repo"), shared("t.Log")),
		provide("t.PG", "", decl.Exclusive),
		log,
	)
	p := mustResolve(t, g, Request{Type: "t.Users"})

	refs := 0
	handle := &pool{refs: &refs}
	var got finder
	ex := NewExecutor()
	for key, fn := range map[string]any{
		"t.PG":    func() pgRepo { return pgRepo{dsn: "pg"} },
		"t.Log":   func() Cloner { return handle },
		"t.Users": func(r finder, l Cloner) string { got = r; return "users" },
	} {
		if err := ex.ProvideFunc(decl.Key{Type: key}, fn); err != nil {
			t.Fatal(err)
		}
	}
	res, err := ex.Execute(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Root != "users" || got == nil || got.Find() != "pg" {
		t.Errorf("expected the bound value to reach the interface parameter, got %v", got)
	}
	if refs != 0 {
		t.Errorf("interface handles are copied, not cloned: refs = %d", refs)
	}
}
