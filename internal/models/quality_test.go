package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestQualityFlagsAddPreservesOrderAndDedups(t *testing.T) {
	q := NewQualityFlags()
	q.Add(FlagNoTickData)
	q.Add(FlagNatureInferred)
	q.Add(FlagNoTickData) // duplicate, ignored
	q.Add(FlagUnitAssumedLots)

	want := []string{FlagNoTickData, FlagNatureInferred, FlagUnitAssumedLots}
	if got := q.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
	if !q.Has(FlagNatureInferred) {
		t.Error("Has(nature_inferred) = false, want true")
	}
	if q.Has(FlagExtremePriceJump) {
		t.Error("Has(extreme_price_jump) = true, want false")
	}
}

func TestQualityFlagsMerge(t *testing.T) {
	a := NewQualityFlags()
	a.Add(FlagNoTickData)
	a.Add(FlagNatureInferred)

	b := NewQualityFlags()
	b.Add(FlagNatureInferred) // overlap, must not duplicate
	b.Add(FlagFallbackToMinute)

	a.Merge(b)
	want := []string{FlagNoTickData, FlagNatureInferred, FlagFallbackToMinute}
	if got := a.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("after Merge, List() = %v, want %v", got, want)
	}

	a.Merge(nil) // nil merge is a no-op
	if a.Len() != 3 {
		t.Errorf("after nil Merge, Len() = %d, want 3", a.Len())
	}
}

func TestQualityFlagsListIsACopy(t *testing.T) {
	q := NewQualityFlags()
	q.Add(FlagNoTrades)
	list := q.List()
	list[0] = "mutated"
	if got := q.List()[0]; got != FlagNoTrades {
		t.Errorf("internal state mutated through List copy: %q", got)
	}
}

func TestQualityFlagsJSONRoundTrip(t *testing.T) {
	q := NewQualityFlags()
	q.Add(FlagNotCurrentDay)
	q.Add(FlagFallbackToMinute)

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `["not_current_trading_day","fallback_to_minute"]` {
		t.Errorf("Marshal = %s", data)
	}

	var back QualityFlags
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(back.List(), q.List()) {
		t.Errorf("round trip: got %v, want %v", back.List(), q.List())
	}
}

func TestQualityFlagsEmptyMarshalsAsEmptyArray(t *testing.T) {
	data, err := json.Marshal(NewQualityFlags())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("empty set marshals to %s, want []", data)
	}
}
