package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtract_TabSeparatedPriceAndStatus(t *testing.T) {
	cands := Cascade{}.Extract("0120\t14500\n0220\tBOR")
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2: %#v", len(cands), cands)
	}
	first := cands[0]
	if first.Label != "0120" || first.Price == nil || !first.Price.Equal(decimal.NewFromInt(14500)) {
		t.Fatalf("first candidate = %#v", first)
	}
	if first.Status != StatusPriced {
		t.Fatalf("first status = %q, want %q", first.Status, StatusPriced)
	}
	second := cands[1]
	if second.Label != "0220" || second.Price != nil || second.Status != "BOR" {
		t.Fatalf("second candidate = %#v", second)
	}
}

func TestExtract_LineBoundaryIsolation(t *testing.T) {
	cands := Cascade{}.Extract("ITEM_A 14500\nITEM_B 15200")
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2: %#v", len(cands), cands)
	}
	for _, c := range cands {
		if strings.Contains(c.Label, "ITEM_A") && strings.Contains(c.Label, "ITEM_B") {
			t.Fatalf("adjacent lines merged into one candidate: %#v", c)
		}
	}
	if cands[0].Label != "ITEM_A" || cands[1].Label != "ITEM_B" {
		t.Fatalf("labels = %q, %q", cands[0].Label, cands[1].Label)
	}
}

func TestExtract_FlagDecoratedLine(t *testing.T) {
	cands := Cascade{}.Extract("🇺🇿 Uz-Kor Gas J150              14900")
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %#v", len(cands), cands)
	}
	if cands[0].Label != "Uz-Kor Gas J150" {
		t.Fatalf("label = %q", cands[0].Label)
	}
	if cands[0].Price == nil || !cands[0].Price.Equal(decimal.NewFromInt(14900)) {
		t.Fatalf("price = %v", cands[0].Price)
	}
}

func TestExtract_CurrencySuffix(t *testing.T) {
	cands := Cascade{}.Extract("Shurtan By456 15400 sum")
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %#v", len(cands), cands)
	}
	if cands[0].Label != "Shurtan By456" || cands[0].Price == nil || !cands[0].Price.Equal(decimal.NewFromInt(15400)) {
		t.Fatalf("candidate = %#v", cands[0])
	}
}

func TestExtract_NoFalseMatches(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"status emoji only", "Uz-Kor Gas J150🔥🔥"},
		{"grade number is not a price", "Uz-Kor Gas Jm370    37000"},
		{"four digit number too small", "Shurtan 1561"},
		{"phone number", "Aloqa +998 90123 45678"},
		{"empty", ""},
		{"garbage", "\x00\xff\t\t"},
	}
	for _, tt := range tests {
		if cands := (Cascade{}).Extract(tt.in); len(cands) != 0 {
			t.Fatalf("%s: got %#v, want none", tt.name, cands)
		}
	}
}

func TestExtract_DuplicateLabelWithinMessage(t *testing.T) {
	cands := Cascade{}.Extract("J150\t14900\nj150\t15100")
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %#v", len(cands), cands)
	}
	if cands[0].Price == nil || !cands[0].Price.Equal(decimal.NewFromInt(14900)) {
		t.Fatalf("first quote should win, got %#v", cands[0])
	}
}

func TestExtract_StatusKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0220 BOR", "BOR"},
		{"By456\tyoq", "YOQ"},
		{"Shurtan 1561  sold out", "SOLD OUT"},
	}
	for _, tt := range tests {
		cands := Cascade{}.Extract(tt.in)
		if len(cands) != 1 || cands[0].Status != tt.want || cands[0].Price != nil {
			t.Fatalf("Extract(%q) = %#v, want status %q", tt.in, cands, tt.want)
		}
	}
}

func TestPlausiblePrice(t *testing.T) {
	tests := []struct {
		label string
		price int64
		want  bool
	}{
		{"Uz-Kor Gas J150", 14900, true},
		{"0120", 14500, true},
		{"Uz-Kor Gas Jm370", 37000, false},
		{"BL5200", 5200, false},
		{"Shurtan By456", 15400, true},
		{"anything", 9999, false},
	}
	for _, tt := range tests {
		if got := PlausiblePrice(tt.label, decimal.NewFromInt(tt.price)); got != tt.want {
			t.Fatalf("PlausiblePrice(%q, %d) = %v, want %v", tt.label, tt.price, got, tt.want)
		}
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100, MaxDelay: 350}
	if d := p.Delay(1); d != 100 {
		t.Fatalf("Delay(1) = %v", d)
	}
	if d := p.Delay(2); d != 200 {
		t.Fatalf("Delay(2) = %v", d)
	}
	if d := p.Delay(3); d != 350 {
		t.Fatalf("Delay(3) = %v, want cap", d)
	}
	if d := p.Delay(10); d != 350 {
		t.Fatalf("Delay(10) = %v, want cap", d)
	}
}
