package odoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lucasfarre/ordercore-backend/pkg/config"
)

type rpcCall struct {
	Service string
	Method  string
	Args    []any
}

func newTestServer(t *testing.T, handler func(call rpcCall) (any, *rpcError)) (*httptest.Server, *[]rpcCall) {
	t.Helper()
	calls := &[]rpcCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		call := rpcCall{
			Service: req.Params["service"].(string),
			Method:  req.Params["method"].(string),
		}
		if args, ok := req.Params["args"].([]any); ok {
			call.Args = args
		}
		*calls = append(*calls, call)

		result, rpcErr := handler(call)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode rpc response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.OdooConfig{
		BaseURL:        baseURL,
		Database:       "ordercore",
		Username:       "sync@ordercore.test",
		APIKey:         "key",
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestUpsertCustomerFindsExisting(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, func(call rpcCall) (any, *rpcError) {
		switch call.Method {
		case "authenticate":
			return 7, nil
		case "execute_kw":
			return []int64{42}, nil
		}
		return nil, &rpcError{Code: 400, Message: "unexpected method"}
	})

	client := newTestClient(t, srv.URL)
	id, err := client.UpsertCustomer(context.Background(), CustomerParams{
		ExternalRef: "user-123",
		Name:        "Ada",
	})
	if err != nil {
		t.Fatalf("upsert customer: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected partner 42, got %d", id)
	}
	// authenticate + one search, no create.
	if len(*calls) != 2 {
		t.Fatalf("expected 2 rpc calls, got %d", len(*calls))
	}
}

func TestCreateOrFindOrderCreatesWhenMissing(t *testing.T) {
	t.Parallel()

	searchServed := false
	srv, _ := newTestServer(t, func(call rpcCall) (any, *rpcError) {
		switch call.Method {
		case "authenticate":
			return 7, nil
		case "execute_kw":
			if !searchServed {
				searchServed = true
				return []int64{}, nil
			}
			return 314, nil
		}
		return nil, &rpcError{Code: 400, Message: "unexpected method"}
	})

	client := newTestClient(t, srv.URL)
	id, err := client.CreateOrFindOrder(context.Background(), OrderParams{
		ClientOrderRef: "oc-order-abc",
		CustomerID:     42,
		Lines: []OrderLine{
			{Name: "Sparkling Water 1L", Quantity: 6, UnitPrice: 1.99},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id != 314 {
		t.Fatalf("expected sale order 314, got %d", id)
	}
}

func TestCreateOrFindOrderReturnsExisting(t *testing.T) {
	t.Parallel()

	srv, calls := newTestServer(t, func(call rpcCall) (any, *rpcError) {
		switch call.Method {
		case "authenticate":
			return 7, nil
		case "execute_kw":
			return []int64{99}, nil
		}
		return nil, &rpcError{Code: 400, Message: "unexpected method"}
	})

	client := newTestClient(t, srv.URL)
	id, err := client.CreateOrFindOrder(context.Background(), OrderParams{
		ClientOrderRef: "oc-order-abc",
		CustomerID:     42,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id != 99 {
		t.Fatalf("expected existing order 99, got %d", id)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected authenticate + search only, got %d calls", len(*calls))
	}
}

func TestRPCErrorSurfacesAsDependencyFailure(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 7, nil
		}
		return nil, &rpcError{Code: 200, Message: "Odoo Server Error"}
	})

	client := newTestClient(t, srv.URL)
	if err := client.ConfirmOrder(context.Background(), 314); err == nil {
		t.Fatalf("expected rpc error to surface")
	}
}

func TestAuthenticateCachesUID(t *testing.T) {
	t.Parallel()

	authCalls := 0
	srv, _ := newTestServer(t, func(call rpcCall) (any, *rpcError) {
		switch call.Method {
		case "authenticate":
			authCalls++
			return 7, nil
		case "execute_kw":
			return []int64{1}, nil
		}
		return nil, &rpcError{Code: 400, Message: "unexpected method"}
	})

	client := newTestClient(t, srv.URL)
	ctx := context.Background()
	for range 3 {
		if _, err := client.searchIDs(ctx, modelSaleOrder, []any{}); err != nil {
			t.Fatalf("search: %v", err)
		}
	}
	if authCalls != 1 {
		t.Fatalf("expected single authenticate call, got %d", authCalls)
	}
}
