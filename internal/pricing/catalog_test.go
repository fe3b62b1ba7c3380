package pricing

import (
	"errors"
	"testing"
)

func TestQuoteOlaSedan(t *testing.T) {
	c := DefaultCatalog()
	q, err := c.Quote("ola", "sedan")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Fare != 172 {
		t.Fatalf("expected 172 (115*1.5 floored), got %d", q.Fare)
	}
	if q.ETAMinutes != QuotedETAMinutes {
		t.Fatalf("unexpected eta %d", q.ETAMinutes)
	}
}

func TestFareFloors(t *testing.T) {
	c := DefaultCatalog()
	cases := map[[2]string]int64{
		{"uber", "bike"}:       72,
		{"uber", "auto"}:       120,
		{"rapido", "bike"}:     51,
		{"blablacar", "sedan"}: 105,
	}
	for k, want := range cases {
		q, err := c.Quote(k[0], k[1])
		if err != nil {
			t.Fatalf("%v: %v", k, err)
		}
		if q.Fare != want {
			t.Fatalf("%v: expected %d, got %d", k, want, q.Fare)
		}
	}
}

func TestQuotesKeepVehicleOrder(t *testing.T) {
	qs, err := DefaultCatalog().Quotes("uber")
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 3 || qs[0].Vehicle != "bike" || qs[2].Vehicle != "sedan" {
		t.Fatalf("unexpected quotes %+v", qs)
	}
}

func TestUnknownIDs(t *testing.T) {
	c := DefaultCatalog()
	if _, err := c.Quote("lyft", "sedan"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := c.Quote("uber", "boat"); !errors.Is(err, ErrUnknownVehicle) {
		t.Fatalf("expected ErrUnknownVehicle, got %v", err)
	}
}
