package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/psaab/srxmerge/pkg/merge"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{&merge.FailedError{}, ResultFatal},
		{fmt.Errorf("merge: %w", context.Canceled), ResultCanceled},
		{context.DeadlineExceeded, ResultCanceled},
		{errors.New("boom"), ResultError},
	}
	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveMerge(t *testing.T) {
	rec := NewRecorder()
	reg := prometheus.NewRegistry()
	if err := rec.Register(reg); err != nil {
		t.Fatal(err)
	}
	m := merge.New(merge.WithObserver(rec))
	ctx := context.Background()

	good := `security { policies { from-zone a to-zone b { policy p { match { source-address any; destination-address any; application any; } then { permit; } } } } }`
	if _, err := m.MergeText(ctx, "", good); err != nil {
		t.Fatal(err)
	}
	bad := `security { policies { from-zone a to-zone b { policy p { match { source-address nope; destination-address any; application any; } then { permit; } } } } }`
	if _, err := m.MergeText(ctx, "", bad); err == nil {
		t.Fatal("expected fatal merge")
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.MergeText(canceled, "", "delete: security;"); err == nil {
		t.Fatal("expected cancellation")
	}

	if got := testutil.ToFloat64(rec.merges.WithLabelValues(ResultOK)); got != 1 {
		t.Errorf("ok merges = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.merges.WithLabelValues(ResultFatal)); got != 1 {
		t.Errorf("fatal merges = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.merges.WithLabelValues(ResultCanceled)); got != 1 {
		t.Errorf("canceled merges = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.diagnostics.WithLabelValues("UnknownReference", "fatal")); got != 1 {
		t.Errorf("UnknownReference = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.policies); got != 1 {
		t.Errorf("last_merge_policies = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(rec.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestObserveDirectives(t *testing.T) {
	rec := NewRecorder()
	m := merge.New(merge.WithObserver(rec))
	doc := `replace: security { zones { security-zone a; } } delete: applications;`
	if _, err := m.MergeText(context.Background(), "", doc); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(rec.directives.WithLabelValues("replace", "applied")); got != 1 {
		t.Errorf("replace applied = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.directives.WithLabelValues("delete", "applied")); got != 1 {
		t.Errorf("delete applied = %v, want 1", got)
	}
}

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewRecorder().Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := NewRecorder().Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}
