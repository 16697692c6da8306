package indicator

import (
	"testing"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
)

func TestLogIndicator_WaitingFollowsBrokerStatus(t *testing.T) {
	ind := NewLogIndicator(nil, 500*time.Millisecond)

	if _, shown := ind.Last(); shown {
		t.Error("new indicator should not have shown a signal")
	}

	ind.Waiting()
	sig, _ := ind.Last()
	want := domain.Signal{Color: domain.ColorOrange, Flash: true, Duration: 500 * time.Millisecond}
	if sig.Color != want.Color || sig.Flash != want.Flash || sig.Duration != want.Duration {
		t.Errorf("waiting while disconnected = %+v, want %+v", sig, want)
	}

	ind.SetBrokerStatus(true)
	if sig, _ = ind.Last(); sig != (domain.Signal{Color: domain.ColorWhite}) {
		t.Errorf("after connect = %+v, want steady white", sig)
	}

	ind.SetBrokerStatus(false)
	if sig, _ = ind.Last(); sig.Color != domain.ColorOrange {
		t.Errorf("after disconnect color = %v, want orange", sig.Color)
	}
}

func TestLogIndicator_Show(t *testing.T) {
	ind := NewLogIndicator(nil, time.Second)
	want := domain.Signal{Color: domain.ColorPurple, Duration: 2 * time.Second}
	ind.Show(want)

	got, shown := ind.Last()
	if !shown {
		t.Fatal("Show did not record a signal")
	}
	if got != want {
		t.Errorf("Last() = %+v, want %+v", got, want)
	}
}
