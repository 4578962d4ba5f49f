package openaiclient

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"polymerbot/internal/parser"
)

func TestParseCandidates_ArrayWrappedInProse(t *testing.T) {
	raw := "Here is the extraction:\n[{\"name\": \"Uz-Kor Gas J150\", \"price\": 14900}, {\"name\": \"Shurtan By456\", \"price\": 15400}]\nLet me know if you need more."
	out, err := parseCandidates(raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 2 {
		t.Fatalf("candidates=%d want 2", len(out))
	}
	if out[0].Label != "Uz-Kor Gas J150" || !out[0].Price.Equal(decimal.NewFromInt(14900)) {
		t.Fatalf("first=%+v", out[0])
	}
	if out[0].Status != parser.StatusPriced {
		t.Fatalf("status=%q", out[0].Status)
	}
}

func TestParseCandidates_DropsImplausibleEntries(t *testing.T) {
	raw := `[
		{"name": "Uz-Kor Gas Jm370", "price": 3700},
		{"name": "BL5200", "price": 5200},
		{"name": "ab", "price": 15000},
		{"name": "Shurtan By456", "price": 15400},
		{"name": "Shurtan By456", "price": 15500}
	]`
	out, err := parseCandidates(raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 1 || out[0].Label != "Shurtan By456" {
		t.Fatalf("candidates=%+v", out)
	}
	if !out[0].Price.Equal(decimal.NewFromInt(15400)) {
		t.Fatalf("duplicate did not keep first price: %v", out[0].Price)
	}
}

func TestParseCandidates_EmptyArray(t *testing.T) {
	out, err := parseCandidates("[]")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(out) != 0 {
		t.Fatalf("candidates=%+v", out)
	}
}

func TestParseCandidates_Malformed(t *testing.T) {
	_, err := parseCandidates("I could not find any prices in that message.")
	if !errors.Is(err, parser.ErrMalformedResponse) {
		t.Fatalf("err=%v want ErrMalformedResponse", err)
	}
}
