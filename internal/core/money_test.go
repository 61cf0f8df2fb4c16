package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12.345", 1234, false},
		{"12.346", 1235, false},
		{"0", 0, false},
		{"32", 3200, false},
		{".5", 50, false},
		{"-1", 0, true},
		{"+1", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDecimalToCents(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDecimalToCents(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 3250})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "32.5" {
		t.Errorf("marshal = %s, want 32.5", b)
	}

	var m Money
	if err := json.Unmarshal([]byte("32.5"), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cents != 3250 {
		t.Errorf("unmarshal cents = %d, want 3250", m.Cents)
	}
}

func TestMoneyFromFloat(t *testing.T) {
	if got := MoneyFromFloat(32).Cents; got != 3200 {
		t.Errorf("cents = %d, want 3200", got)
	}
	if got := MoneyFromFloat(0.015).Cents; got != 2 {
		t.Errorf("cents = %d, want 2 (half-up)", got)
	}
}
