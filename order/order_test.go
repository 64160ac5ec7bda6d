package order

import "testing"

func TestTerminalStatuses(t *testing.T) {
	terminal := []Status{StatusCanceled, StatusExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	live := []Status{StatusNew, StatusPartiallyFilled, StatusFilled}
	for _, s := range live {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"NEW":              StatusNew,
		"submitted":        StatusNew,
		"PARTIALLY_FILLED": StatusPartiallyFilled,
		"partial":          StatusPartiallyFilled,
		"Filled":           StatusFilled,
		"CANCELLED":        StatusCanceled,
		"canceled":         StatusCanceled,
		" EXPIRED ":        StatusExpired,
	}
	for raw, want := range cases {
		got, ok := ParseStatus(raw)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q ok=%v, want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseStatus("SOMETHING_ELSE"); ok {
		t.Fatal("unknown status should not parse")
	}
}

func TestSyntheticOrders(t *testing.T) {
	id := SyntheticID(Bid, "prod-btc")
	if id != "position-bid-prod-btc" {
		t.Fatalf("synthetic id = %q", id)
	}
	if !(Order{ID: id}).Synthetic() {
		t.Fatal("synthetic order not detected")
	}
	if (Order{ID: "abc-123"}).Synthetic() {
		t.Fatal("regular order flagged synthetic")
	}
	if got := SyntheticID(Ask, "prod-eth"); got != "position-ask-prod-eth" {
		t.Fatalf("ask synthetic id = %q", got)
	}
}

func TestSideWire(t *testing.T) {
	if Bid.Wire() != 0 || Ask.Wire() != 1 {
		t.Fatalf("wire encoding mismatch: bid=%d ask=%d", Bid.Wire(), Ask.Wire())
	}
	if Bid.String() != "BID" || Ask.String() != "ASK" {
		t.Fatalf("side strings: %s/%s", Bid, Ask)
	}
}
