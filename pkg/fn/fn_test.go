package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if _, err := e.Unwrap(); e.IsOk() || !e.IsErr() || err == nil {
		t.Fatal("Err should be err")
	}
}

func TestErrfWraps(t *testing.T) {
	base := errors.New("base")
	r := Errf[string]("load %s: %w", "x.pdf", base)
	_, err := r.Unwrap()
	if !errors.Is(err, base) {
		t.Fatalf("Errf should wrap, got %v", err)
	}
}

func TestUnwrapOr(t *testing.T) {
	if Ok(1).UnwrapOr(9) != 1 {
		t.Fatal("should return value")
	}
	if Err[int](errors.New("x")).UnwrapOr(9) != 9 {
		t.Fatal("should return fallback")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(5), func(v int) string { return strconv.Itoa(v) })
	if v, _ := r.Unwrap(); v != "5" {
		t.Fatal("MapResult failed")
	}
	if MapResult(Err[int](errors.New("x")), strconv.Itoa).IsOk() {
		t.Fatal("MapResult on Err should stay Err")
	}
}

func TestFromPair(t *testing.T) {
	if v, _ := FromPair(strconv.Atoi("42")).Unwrap(); v != 42 {
		t.Fatal("FromPair failed")
	}
	if FromPair(strconv.Atoi("nope")).IsOk() {
		t.Fatal("FromPair should fail")
	}
}

func TestCollect(t *testing.T) {
	all, err := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)}).Unwrap()
	if err != nil || len(all) != 3 || all[0] != 1 {
		t.Fatal("Collect failed")
	}

	_, err = Collect([]Result[int]{Ok(1), Err[int](errors.New("e1")), Err[int](errors.New("e2"))}).Unwrap()
	if err == nil || err.Error() != "e1" {
		t.Fatal("Collect should return first error")
	}

	empty, err := Collect([]Result[int]{}).Unwrap()
	if err != nil || len(empty) != 0 {
		t.Fatal("Collect empty should be ok")
	}
}

// --- Slice ---

func TestMap(t *testing.T) {
	out := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if len(out) != 3 || out[2] != 6 {
		t.Fatal("Map failed")
	}
}

func TestChunk(t *testing.T) {
	c := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(c) != 3 || len(c[2]) != 1 {
		t.Fatal("Chunk failed")
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk n<=0 should return nil")
	}
	if len(Chunk([]int{}, 8)) != 0 {
		t.Fatal("Chunk of empty should be empty")
	}
}

func TestDuplicates(t *testing.T) {
	d := Duplicates([]string{"a", "b", "a", "c", "a", "b"}, func(s string) string { return s })
	if len(d) != 2 || d[0] != "a" || d[1] != "b" {
		t.Fatalf("Duplicates = %v", d)
	}
	if Duplicates([]int{1, 2, 3}, func(v int) int { return v }) != nil {
		t.Fatal("expected no duplicates")
	}
}

// --- Parallel ---

func TestParMapResultOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out := ParMapResult(context.Background(), items, 2, func(_ context.Context, v int) Result[int] {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return Ok(v * 10)
	})
	for i, r := range out {
		v, err := r.Unwrap()
		if err != nil || v != items[i]*10 {
			t.Fatalf("ParMapResult order broken at %d: %v", i, v)
		}
	}
}

func TestParMapResultBounded(t *testing.T) {
	var inflight, peak atomic.Int32
	ParMapResult(context.Background(), make([]int, 20), 3, func(_ context.Context, _ int) Result[int] {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
		return Ok(0)
	})
	if peak.Load() > 3 {
		t.Fatalf("expected at most 3 workers, saw %d", peak.Load())
	}
}

func TestParMapResultEmpty(t *testing.T) {
	out := ParMapResult(context.Background(), []int{}, 2, func(_ context.Context, v int) Result[int] { return Ok(v) })
	if len(out) != 0 {
		t.Fatal("ParMapResult empty should return empty")
	}
}

func TestParMapResultCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := ParMapResult(ctx, []int{1, 2, 3}, 1, func(_ context.Context, v int) Result[int] { return Ok(v) })
	if Collect(out).IsOk() {
		t.Fatal("expected cancellation error")
	}
}

func TestFanOut(t *testing.T) {
	out := FanOut(func() int { return 1 }, func() int { return 2 })
	if out[0] != 1 || out[1] != 2 {
		t.Fatal("FanOut failed")
	}
}

// --- Pipeline ---

func TestThen(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	addOne := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) })

	r := Then(double, addOne)(context.Background(), 5)
	if v, _ := r.Unwrap(); v != 11 {
		t.Fatal("Then failed")
	}
}

func TestThenShortCircuits(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	called := false
	second := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})

	r := Then(fail, second)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("Then should short-circuit")
	}
}

func TestThenStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := Stage[int, int](func(_ context.Context, v int) Result[int] {
		cancel()
		return Ok(v)
	})
	called := false
	second := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})
	_, err := Then(first, second)(ctx, 1).Unwrap()
	if !errors.Is(err, context.Canceled) || called {
		t.Fatal("Then should stop after cancellation")
	}
}

func TestMapStage(t *testing.T) {
	s := MapStage(func(v int) string { return strconv.Itoa(v) })
	if v, _ := s(context.Background(), 42).Unwrap(); v != "42" {
		t.Fatal("MapStage failed")
	}
}

func TestLiftStage(t *testing.T) {
	s := LiftStage(func(_ context.Context, in string) (int, error) { return strconv.Atoi(in) })
	if v, _ := s(context.Background(), "7").Unwrap(); v != 7 {
		t.Fatal("LiftStage failed")
	}
	if s(context.Background(), "x").IsOk() {
		t.Fatal("LiftStage should carry the error")
	}
}

func TestTapStage(t *testing.T) {
	var captured int
	s := TapStage(func(_ context.Context, v int) { captured = v })
	if v, _ := s(context.Background(), 7).Unwrap(); v != 7 || captured != 7 {
		t.Fatal("TapStage failed")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("test-stage", Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) }))
	if v, _ := s(context.Background(), 1).Unwrap(); v != 2 {
		t.Fatal("TracedStage failed")
	}

	e := TracedStage("err-stage", Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("x")) }))
	if e(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage error should propagate")
	}
}
