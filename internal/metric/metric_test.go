package metric

import (
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"btc_price", false},
		{"etf_flow_btc", false},
		{"dat_holdings_eth", false},
		{"eth_btc_ratio", false},
		{"", true},
		{"btc", true},
		{"etf_flow_doge", true},
		{"BTC_PRICE", true},
	}
	for _, tt := range tests {
		_, err := ParseKey(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKey(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestKeysAllValid(t *testing.T) {
	keys := Keys()
	if len(keys) == 0 {
		t.Fatal("Keys() returned empty enumeration")
	}
	for _, k := range keys {
		if !k.Valid() {
			t.Errorf("enumerated key %q not Valid()", k)
		}
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("HKT", 8*60*60)
	in := time.Date(2026, 3, 15, 2, 30, 0, 0, loc) // 2026-03-14 18:30 UTC
	got := Day(in)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day(%v) = %v, want %v", in, got, want)
	}
}

func TestDedupeLastWins(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{Date: day, Key: KeyBTCPrice, Value: Float(1)},
		{Date: day, Key: KeyETHPrice, Value: Float(2)},
		{Date: day, Key: KeyBTCPrice, Value: Float(3)},
		{Date: day.AddDate(0, 0, -1), Key: KeyBTCPrice, Value: Float(4)},
	}

	out := Dedupe(records)
	if len(out) != 3 {
		t.Fatalf("Dedupe returned %d records, want 3", len(out))
	}
	if *out[0].Value != 3 {
		t.Errorf("duplicate (date,key) kept value %v, want last-seen 3", *out[0].Value)
	}
	if out[1].Key != KeyETHPrice {
		t.Errorf("order not preserved: out[1].Key = %q", out[1].Key)
	}
	if *out[2].Value != 4 {
		t.Errorf("different date collapsed: out[2].Value = %v", *out[2].Value)
	}
}

func TestDedupeEmpty(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Errorf("Dedupe(nil) = %v, want empty", out)
	}
}
