package plan

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/errors"
)

// Constructor builds one provider's value from its adapted arguments.
type Constructor func(ctx context.Context, args []any) (any, error)

// Cloner is implemented by shared values that count their references.
// A clone op calls Clone once per consuming edge.
type Cloner interface {
	Clone() any
}

// ConstructionError reports the step that stopped an execution.
type ConstructionError struct {
	Key   decl.Key
	Step  int
	Cause error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Key, e.Cause)
}

func (e *ConstructionError) Unwrap() error { return e.Cause }

// AppError converts the error for callers outside the executor.
func (e *ConstructionError) AppError() *errors.AppError {
	return errors.ConstructionFailed(e.Key.String(), e.Step, e.Cause)
}

// Result is the outcome of an execution. On failure it holds the values of
// the steps that completed before the failing one.
type Result struct {
	Root any
	// Values holds the output of each completed step, by plan index.
	Values    []any
	Completed int
}

// Executor runs plans against registered constructors.
type Executor struct {
	constructors map[decl.Key]Constructor
}

// NewExecutor creates an executor with no constructors.
func NewExecutor() *Executor {
	return &Executor{constructors: make(map[decl.Key]Constructor)}
}

// Provide registers the constructor for key, replacing any earlier one.
func (e *Executor) Provide(key decl.Key, c Constructor) *Executor {
	e.constructors[key] = c
	return e
}

// ProvideFunc registers a plain Go function for key. See Func.
func (e *Executor) ProvideFunc(key decl.Key, fn any) error {
	c, err := Func(fn)
	if err != nil {
		return fmt.Errorf("provider %s: %w", key, err)
	}
	e.constructors[key] = c
	return nil
}

// Execute runs p strictly in order. The first failing step stops the run:
// later steps are never invoked and earlier ones are not undone. The error
// is a *ConstructionError wrapping the provider's own error.
func (e *Executor) Execute(ctx context.Context, p *Plan) (*Result, error) {
	var missing []string
	for _, s := range p.Steps {
		if _, ok := e.constructors[s.Key]; !ok {
			missing = append(missing, s.Key.String())
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.NotFound("constructor", strings.Join(missing, ", "))
	}

	res := &Result{Values: make([]any, len(p.Steps))}
	slots := make([]reflect.Value, len(p.Steps))
	for i, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return res, &ConstructionError{Key: s.Key, Step: i, Cause: err}
		}
		args := make([]any, len(s.Args))
		for j, a := range s.Args {
			args[j] = apply(slots[a.FromIndex], p.Steps[a.FromIndex].Provider, a.Ops)
		}
		v, err := e.constructors[s.Key](ctx, args)
		if err != nil {
			return res, &ConstructionError{Key: s.Key, Step: i, Cause: err}
		}
		slots[i] = store(v)
		res.Values[i] = v
		res.Completed = i + 1
	}
	res.Root = res.Values[len(p.Steps)-1]
	return res, nil
}

// store keeps v in addressable storage so a borrow can point at it.
func store(v any) reflect.Value {
	if v == nil {
		return reflect.Value{}
	}
	slot := reflect.New(reflect.TypeOf(v))
	slot.Elem().Set(reflect.ValueOf(v))
	return slot
}

// apply converts a stored value for one edge. A bind passes the value on
// as is: the constructor's parameter type performs the interface conversion.
func apply(slot reflect.Value, producer decl.Provider, ops []Op) any {
	if !slot.IsValid() {
		return nil
	}
	v := slot.Elem().Interface()
	for _, op := range ops {
		switch op {
		case OpBorrow:
			v = slot.Interface()
		case OpClone:
			if c, ok := v.(Cloner); ok && !producer.Handle() {
				v = c.Clone()
			}
		}
	}
	return v
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Func adapts a plain function into a Constructor. fn may take a leading
// context.Context followed by one parameter per dependency, and must return
// T or (T, error).
func Func(fn any) (Constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %T", fn)
	}
	ft := fv.Type()
	switch ft.NumOut() {
	case 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("second result of %s must be an error", ft)
		}
	default:
		return nil, fmt.Errorf("constructor must return either (instance) or (instance, error), got %s", ft)
	}
	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType

	return func(ctx context.Context, args []any) (any, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if len(in)+len(args) != ft.NumIn() {
			return nil, fmt.Errorf("%s takes %d arguments, plan supplies %d", ft, ft.NumIn()-len(in), len(args))
		}
		for _, a := range args {
			want := ft.In(len(in))
			if a == nil {
				in = append(in, reflect.Zero(want))
				continue
			}
			av := reflect.ValueOf(a)
			if !av.Type().AssignableTo(want) {
				return nil, fmt.Errorf("argument %d: %s is not assignable to %s", len(in), av.Type(), want)
			}
			in = append(in, av)
		}
		return handleResults(fv.Call(in))
	}, nil
}

func handleResults(results []reflect.Value) (any, error) {
	instance := results[0].Interface()
	if len(results) == 2 {
		if err, _ := results[1].Interface().(error); err != nil {
			return nil, err
		}
	}
	return instance, nil
}
