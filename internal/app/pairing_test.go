package app

import (
	"testing"

	"github.com/bft-labs/tagrelay/internal/domain"
)

func object(id string) domain.ScannedItem {
	return domain.NewScannedItem(id, domain.Object, map[string]any{"name": "obj " + id})
}

func location(id string) domain.ScannedItem {
	return domain.NewScannedItem(id, domain.Location, map[string]any{"name": "loc " + id})
}

func TestPairing_ObjectThenLocation(t *testing.T) {
	p := NewPairing(nil)

	pair, replaced := p.Scan(object("RFID1"))
	if pair != nil || replaced {
		t.Fatalf("first scan = (%v, %v), want (nil, false)", pair, replaced)
	}
	if p.State() != PairHasObject {
		t.Errorf("State() = %v, want HasObject", p.State())
	}

	pair, replaced = p.Scan(location("OP1"))
	if pair == nil {
		t.Fatal("no pair after object and location")
	}
	if replaced {
		t.Error("replaced = true for a completing scan")
	}
	if pair.Object.ItemID != "RFID1" || pair.Location.ItemID != "OP1" {
		t.Errorf("pair = %s/%s, want RFID1/OP1", pair.Object.ItemID, pair.Location.ItemID)
	}
	if p.State() != PairEmpty {
		t.Errorf("State() = %v, want Empty", p.State())
	}
}

func TestPairing_LocationThenObject(t *testing.T) {
	p := NewPairing(nil)

	if pair, _ := p.Scan(location("OP1")); pair != nil {
		t.Fatalf("pair after a lone location: %+v", pair)
	}
	if p.State() != PairHasLocation {
		t.Errorf("State() = %v, want HasLocation", p.State())
	}

	pair, _ := p.Scan(object("RFID1"))
	if pair == nil {
		t.Fatal("no pair after location and object")
	}
	if pair.Object.ItemID != "RFID1" || pair.Location.ItemID != "OP1" {
		t.Errorf("pair = %s/%s, want RFID1/OP1", pair.Object.ItemID, pair.Location.ItemID)
	}
}

func TestPairing_SameTypeReplaces(t *testing.T) {
	p := NewPairing(nil)

	p.Scan(object("A"))
	pair, replaced := p.Scan(object("B"))
	if pair != nil || !replaced {
		t.Fatalf("second object = (%v, %v), want (nil, true)", pair, replaced)
	}

	obj, loc := p.Pending()
	if obj.ItemID != "B" {
		t.Errorf("pending object = %s, want B", obj.ItemID)
	}
	if !loc.IsZero() {
		t.Errorf("pending location = %+v, want none", loc)
	}

	pair, _ = p.Scan(location("OP1"))
	if pair == nil || pair.Object.ItemID != "B" {
		t.Errorf("pair = %+v, want object B", pair)
	}
}

func TestPairing_ComposesOnlyWhenBothSinceLast(t *testing.T) {
	tests := []struct {
		name  string
		scans []domain.ScannedItem
		pairs int
	}{
		{"objects only", []domain.ScannedItem{object("A"), object("B"), object("C")}, 0},
		{"locations only", []domain.ScannedItem{location("1"), location("2")}, 0},
		{"alternating", []domain.ScannedItem{object("A"), location("1"), object("B"), location("2")}, 2},
		{"replacement then pair", []domain.ScannedItem{location("1"), location("2"), object("A")}, 1},
		{"pair then lone object", []domain.ScannedItem{object("A"), location("1"), object("B")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPairing(nil)
			pairs := 0
			for _, s := range tt.scans {
				if pair, _ := p.Scan(s); pair != nil {
					pairs++
				}
			}
			if pairs != tt.pairs {
				t.Errorf("pairs = %d, want %d", pairs, tt.pairs)
			}
		})
	}
}

func TestPairing_Reset(t *testing.T) {
	p := NewPairing(nil)
	p.Scan(object("A"))
	p.Reset()
	if p.State() != PairEmpty {
		t.Errorf("State() = %v, want Empty", p.State())
	}

	obj, loc := p.Pending()
	if !obj.IsZero() || !loc.IsZero() {
		t.Errorf("Pending() = %+v, %+v after Reset", obj, loc)
	}
}

func TestPairState_String(t *testing.T) {
	tests := []struct {
		state PairState
		want  string
	}{
		{PairEmpty, "Empty"},
		{PairHasObject, "HasObject"},
		{PairHasLocation, "HasLocation"},
		{PairState(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("PairState(%d).String() = %v, want %v", int(tt.state), got, tt.want)
		}
	}
}
