package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilCollectorsAreNoop(t *testing.T) {
	var c *Collectors
	c.Transition("edit")
	c.VersionCreated()
	c.ObserveSweep(time.Now(), 3, nil)
	c.CounterFailed("views")
}

func TestObserveSweep(t *testing.T) {
	c := New()

	c.ObserveSweep(time.Now(), 2, nil)
	c.ObserveSweep(time.Now(), 5, errors.New("boom"))

	if got := testutil.ToFloat64(c.PostsPromoted); got != 2 {
		t.Fatalf("expected 2 promoted, got %v", got)
	}
	if got := testutil.ToFloat64(c.SweepErrors); got != 1 {
		t.Fatalf("expected 1 sweep error, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	c := New()
	c.Transition("publish")
	c.CounterFailed("shares")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`blockpress_post_transitions_total{transition="publish"} 1`,
		`blockpress_counter_failures_total{counter="shares"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}
