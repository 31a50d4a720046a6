package state_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-strata/pkg/state"
)

func TestGateLatestRequestWins(t *testing.T) {
	gate := state.NewGate()
	first := gate.Begin("osm")
	second := gate.Begin("osm")
	other := gate.Begin("topo")

	if gate.Current(first) {
		t.Fatalf("expected first ticket to be superseded")
	}
	if !gate.Current(second) || !gate.Current(other) {
		t.Fatalf("expected latest tickets to be current")
	}

	ran, err := gate.Apply(first, func() error {
		t.Fatalf("stale result must not be applied")
		return nil
	})
	if ran || err != nil {
		t.Fatalf("expected stale apply to be skipped, ran=%v err=%v", ran, err)
	}

	boom := errors.New("boom")
	ran, err = gate.Apply(second, func() error { return boom })
	if !ran || !errors.Is(err, boom) {
		t.Fatalf("expected current apply to run and return its error, ran=%v err=%v", ran, err)
	}
}

func TestGateCancel(t *testing.T) {
	gate := state.NewGate()
	ticket := gate.Begin("osm")
	gate.Cancel("osm")
	if gate.Current(ticket) {
		t.Fatalf("expected cancelled ticket to be stale")
	}
	gate.Cancel("unknown")
	if next := gate.Begin("unknown"); !gate.Current(next) {
		t.Fatalf("expected fresh ticket after cancelling an unknown key")
	}
}
