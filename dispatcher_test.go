package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// appender calls next and appends its text to the buffered body, so the
// final body lists units innermost first.
type appender struct {
	text string
	log  *[]string
}

func (a *appender) Process(ctx context.Context, r *http.Request, next Handler) (Response, error) {
	if a.log != nil {
		*a.log = append(*a.log, a.text)
	}
	resp, err := next.Handle(ctx, r)
	if err != nil {
		return nil, err
	}
	buf, ok := resp.(*BufferedResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response %T", resp)
	}
	buf.WriteString(a.text)
	return buf, nil
}

// testConstructor builds appenders for "A" and "B"; "A" takes its text
// from the "text" argument. It records every identifier it is asked for.
type testConstructor struct {
	built []string
	log   *[]string
}

func (c *testConstructor) Construct(id string, args map[string]any) (any, error) {
	c.built = append(c.built, id)
	switch id {
	case "A":
		text, _ := args["text"].(string)
		if text == "" {
			text = "A"
		}
		return &appender{text: text, log: c.log}, nil
	case "B":
		return &appender{text: "B", log: c.log}, nil
	case "notMiddleware":
		return 42, nil
	}
	return nil, fmt.Errorf("unknown identifier %q", id)
}

func newTestDispatcher() (*Dispatcher, *testConstructor, *[]string) {
	var visited []string
	c := &testConstructor{log: &visited}
	d := NewDispatcher(NewFallbackHandler(Text(http.StatusOK, "")), NewFactoryResolver(c))
	return d, c, &visited
}

func dispatch(t *testing.T, d *Dispatcher) *BufferedResponse {
	t.Helper()
	resp, err := d.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	buf, ok := resp.(*BufferedResponse)
	if !ok {
		t.Fatalf("Handle() returned %T", resp)
	}
	return buf
}

func TestDispatch_EqualPriorityRunsInInsertionOrder(t *testing.T) {
	d, _, visited := newTestDispatcher()
	d.Register(0, IDWithArgs("A", Args{"text": "A"}))
	d.Register(0, ID("B"))

	if body := dispatch(t, d).String(); body != "BA" {
		t.Errorf("body = %q, want BA", body)
	}
	if want := []string{"A", "B"}; !reflect.DeepEqual(*visited, want) {
		t.Errorf("visited = %v, want %v", *visited, want)
	}
}

func TestDispatch_HigherPriorityRunsOutermost(t *testing.T) {
	d, _, visited := newTestDispatcher()
	d.Register(10, ID("A"))
	d.Register(20, ID("B"))

	if body := dispatch(t, d).String(); body != "AB" {
		t.Errorf("body = %q, want AB", body)
	}
	if want := []string{"B", "A"}; !reflect.DeepEqual(*visited, want) {
		t.Errorf("visited = %v, want %v", *visited, want)
	}
}

func TestDispatch_NegativePriorityRunsLast(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Register(-5, ID("A"))
	d.Register(0, ID("B"))

	if body := dispatch(t, d).String(); body != "AB" {
		t.Errorf("body = %q, want AB", body)
	}
}

func TestDispatch_Alias(t *testing.T) {
	aliased, _, _ := newTestDispatcher()
	aliased.SetAlias("foo", "B")
	aliased.Register(0, ID("A"), ID("foo"))

	direct, _, _ := newTestDispatcher()
	direct.Register(0, ID("A"), ID("B"))

	if got, want := dispatch(t, aliased).String(), dispatch(t, direct).String(); got != want {
		t.Errorf("aliased body = %q, direct body = %q", got, want)
	}
	if id := aliased.Snapshot()[1].Descriptor.Identifier(); id != "B" {
		t.Errorf("stored identifier = %q, want B", id)
	}
}

func TestDispatch_AliasAppliedAtRegistration(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Register(0, ID("foo"))
	d.SetAlias("foo", "B")

	if id := d.Snapshot()[0].Descriptor.Identifier(); id != "foo" {
		t.Errorf("entry registered before the alias became %q", id)
	}
	if _, err := d.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); !IsInvalidMiddleware(err) {
		t.Errorf("error = %v, want invalid middleware for unaliased foo", err)
	}
}

func TestDispatch_ShortCircuit(t *testing.T) {
	d, c, visited := newTestDispatcher()

	stop := MiddlewareFunc(func(ctx context.Context, r *http.Request, next Handler) (Response, error) {
		return Text(http.StatusForbidden, "stopped"), nil
	})
	d.Register(0, ID("A"))
	d.Register(0, Func(stop))
	d.Register(0, ID("B"))

	buf := dispatch(t, d)
	if buf.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", buf.StatusCode)
	}
	if buf.String() != "stoppedA" {
		t.Errorf("body = %q, want stoppedA", buf.String())
	}
	if want := []string{"A"}; !reflect.DeepEqual(*visited, want) {
		t.Errorf("visited = %v, want %v", *visited, want)
	}
	if want := []string{"A"}; !reflect.DeepEqual(c.built, want) {
		t.Errorf("constructed = %v, want %v; B must not be resolved", c.built, want)
	}
}

func TestDispatch_EmptyReturnsFallback(t *testing.T) {
	fixed := JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	d := NewDispatcher(NewFallbackHandler(fixed), NewFactoryResolver(nil))

	resp, err := d.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !reflect.DeepEqual(resp, fixed) {
		t.Errorf("response = %#v, want %#v", resp, fixed)
	}
}

func TestDispatch_UnknownIdentifier(t *testing.T) {
	d, _, visited := newTestDispatcher()
	d.Register(10, ID("A"))
	d.Register(0, ID("Missing"))

	resp, err := d.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if resp != nil {
		t.Errorf("response = %v, want nil", resp)
	}

	var invalid *InvalidMiddlewareError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *InvalidMiddlewareError", err)
	}
	if invalid.Middleware != "Missing" {
		t.Errorf("Middleware = %v, want Missing", invalid.Middleware)
	}
	if !errors.Is(err, ErrInvalidMiddleware) {
		t.Error("error should match ErrInvalidMiddleware")
	}
	if err.Error() != `middleware [Missing] is invalid: unknown identifier "Missing"` {
		t.Errorf("message = %q", err.Error())
	}
	if len(*visited) != 1 {
		t.Errorf("visited = %v, want only A", *visited)
	}
}

func TestDispatch_ConstructedValueNotMiddleware(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Register(0, ID("notMiddleware"))

	_, err := d.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err == nil || err.Error() != "middleware [int] is invalid" {
		t.Errorf("error = %v, want middleware [int] is invalid", err)
	}
}

func TestDispatch_UnclassifiedValue(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Add(3.14)

	_, err := d.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err == nil || err.Error() != "middleware [float64] is invalid" {
		t.Errorf("error = %v, want middleware [float64] is invalid", err)
	}
}

func TestDispatch_Repeatable(t *testing.T) {
	d, c, visited := newTestDispatcher()
	d.Register(0, ID("A"), ID("B"))

	first := dispatch(t, d).String()
	second := dispatch(t, d).String()

	if first != "BA" || second != "BA" {
		t.Errorf("bodies = %q, %q, want BA twice", first, second)
	}
	if want := []string{"A", "B", "A", "B"}; !reflect.DeepEqual(*visited, want) {
		t.Errorf("visited = %v, want %v", *visited, want)
	}
	if len(c.built) != 4 {
		t.Errorf("constructed %d units, want a fresh unit per entry per dispatch", len(c.built))
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d after dispatch, want 2", d.Len())
	}
}

func TestDispatch_FuncsAndInstances(t *testing.T) {
	d, _, _ := newTestDispatcher()

	raw := func(ctx context.Context, r *http.Request, next Handler) (Response, error) {
		resp, err := next.Handle(ctx, r)
		if err == nil {
			resp.(*BufferedResponse).WriteString("f")
		}
		return resp, err
	}
	d.Add(raw, raw, &appender{text: "i"})

	if body := dispatch(t, d).String(); body != "iff" {
		t.Errorf("body = %q, want iff", body)
	}
}

func TestDispatcher_Reset(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.SetAlias("foo", "B")
	d.Register(0, ID("A"))

	fresh := d.Reset()
	if fresh.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", fresh.Len())
	}
	if d.Len() != 1 {
		t.Error("Reset must not touch the original")
	}
	if !reflect.DeepEqual(fresh.Aliases(), map[string]string{"foo": "B"}) {
		t.Errorf("Aliases() = %v after Reset", fresh.Aliases())
	}

	fresh.Register(0, ID("foo"))
	if body := dispatch(t, fresh).String(); body != "B" {
		t.Errorf("body = %q, want B", body)
	}
}

func TestNewDispatcher_NilArguments(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	t.Run("nil fallback", func(t *testing.T) {
		d := NewDispatcher(nil, nil, WithLogger(nil))
		if _, err := d.Handle(context.Background(), req); !errors.Is(err, ErrNoFallback) {
			t.Errorf("Handle() error = %v, want ErrNoFallback", err)
		}
	})

	t.Run("nil resolver rejects identifiers", func(t *testing.T) {
		d := NewDispatcher(NewFallbackHandler(Text(http.StatusOK, "")), nil, WithLogger(nil))
		d.Register(0, ID("A"))
		if _, err := d.Handle(context.Background(), req); !IsInvalidMiddleware(err) {
			t.Errorf("Handle() error = %v, want invalid middleware", err)
		}
	})

	t.Run("nil resolver still runs instances", func(t *testing.T) {
		d := NewDispatcher(NewFallbackHandler(Text(http.StatusOK, "")), nil).Reset()
		d.Register(0, Instance(&appender{text: "x"}))
		if body := dispatch(t, d).String(); body != "x" {
			t.Errorf("body = %q, want x", body)
		}
	})
}

func TestChain(t *testing.T) {
	var order []string
	final := HandlerFunc(func(ctx context.Context, r *http.Request) (Response, error) {
		order = append(order, "handler")
		return Text(http.StatusOK, ""), nil
	})

	h := Chain(final, &appender{text: "1", log: &order}, &appender{text: "2", log: &order})
	resp, err := h.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if want := []string{"1", "2", "handler"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if body := resp.(*BufferedResponse).String(); body != "21" {
		t.Errorf("body = %q, want 21", body)
	}
}
