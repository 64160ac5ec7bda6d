package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *EtherealRESTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewEtherealRESTClient(srv.URL, "0xabc", "test-key", time.Second)
	return c
}

func TestPlaceParsesOrderID(t *testing.T) {
	var got PlaceRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/order" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Ethereal-Signature") == "" {
			t.Fatal("missing signature header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(PlaceResponse{OrderID: "ord-1", Status: "NEW"})
	})

	resp, err := c.Place(context.Background(), PlaceRequest{
		OrderType:    "LIMIT",
		Quantity:     0.001,
		Side:         0,
		Price:        49950,
		Ticker:       "BTCUSD",
		TimeInForce:  "GTD",
		ExpiresAtSec: 1_700_000_300,
	})
	if err != nil {
		t.Fatalf("place err: %v", err)
	}
	if resp.OrderID != "ord-1" {
		t.Fatalf("order id = %q", resp.OrderID)
	}
	if got.Side != 0 || got.TimeInForce != "GTD" || got.OrderType != "LIMIT" {
		t.Fatalf("request body = %+v", got)
	}
}

func TestCancelSendsIDsAndSubaccount(t *testing.T) {
	var got CancelRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(CancelResponse{Canceled: got.OrderIDs})
	})

	resp, err := c.Cancel(context.Background(), CancelRequest{OrderIDs: []string{"a", "b"}, Subaccount: "primary"})
	if err != nil {
		t.Fatalf("cancel err: %v", err)
	}
	if len(got.OrderIDs) != 2 || got.Subaccount != "primary" {
		t.Fatalf("request = %+v", got)
	}
	if len(resp.Canceled) != 2 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestPositionsQuery(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subaccountId") != "sub-1" {
			t.Fatalf("query = %v", r.URL.Query())
		}
		if got := r.URL.Query()["productIds"]; len(got) != 2 {
			t.Fatalf("productIds = %v", got)
		}
		_ = json.NewEncoder(w).Encode(PositionsResponse{Data: []PositionRow{
			{ProductID: "prod-btc", Quantity: "0.005", EntryPrice: "45000"},
		}})
	})

	resp, err := c.Positions(context.Background(), "sub-1", []string{"prod-btc", "prod-eth"})
	if err != nil {
		t.Fatalf("positions err: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Quantity != "0.005" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestRejectStatusBecomesAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad price"}`, http.StatusUnprocessableEntity)
	})

	_, err := c.Place(context.Background(), PlaceRequest{OrderType: "LIMIT"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.Reject() || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestServerErrorIsNotReject(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.ListProducts(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Reject() {
		t.Fatalf("err = %v, want transport-class APIError", err)
	}
}
