package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_AuthorizeAlreadySatisfied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "account_lines" {
			t.Errorf("expected method account_lines, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"result": map[string]interface{}{
				"status": "success",
				"lines": []map[string]interface{}{
					{
						"account":  "rIssuer",
						"currency": CurrencyCode("PROP1A2B3C"),
						"balance":  "0",
						"limit":    "1000000000",
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithAccountSecret("rHolder", "shSecret"))

	_, err := client.Authorize(context.Background(), "rHolder", "rIssuer", "PROP1A2B3C")
	if !errors.Is(err, ErrAlreadySatisfied) {
		t.Fatalf("expected ErrAlreadySatisfied, got %v", err)
	}
}

func TestHTTPClient_AuthorizeSubmitsTrustSet(t *testing.T) {
	var sawSubmit atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		var resp map[string]interface{}
		switch req.Method {
		case "account_lines":
			resp = map[string]interface{}{
				"result": map[string]interface{}{
					"status": "success",
					"lines":  []interface{}{},
				},
			}
		case "submit":
			sawSubmit.Store(true)
			params := req.Params[0].(map[string]interface{})
			if params["secret"] != "shSecret" {
				t.Errorf("expected registered secret, got %v", params["secret"])
			}
			txJSON := params["tx_json"].(map[string]interface{})
			if txJSON["TransactionType"] != "TrustSet" {
				t.Errorf("expected TrustSet, got %v", txJSON["TransactionType"])
			}
			resp = map[string]interface{}{
				"result": map[string]interface{}{
					"status":        "success",
					"engine_result": "tesSUCCESS",
					"tx_json":       map[string]interface{}{"hash": "ABC123"},
				},
			}
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithAccountSecret("rHolder", "shSecret"))

	opRef, err := client.Authorize(context.Background(), "rHolder", "rIssuer", "PROP1A2B3C")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if opRef != "ABC123" {
		t.Errorf("opRef = %q, want ABC123", opRef)
	}
	if !sawSubmit.Load() {
		t.Error("expected a submit call")
	}
}

func TestHTTPClient_TransferUnitsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"result": map[string]interface{}{
				"status":                "success",
				"engine_result":         "tecPATH_DRY",
				"engine_result_message": "Path could not send partial amount.",
				"tx_json":               map[string]interface{}{"hash": "DEAD"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithAccountSecret("rSeller", "shSecret"))

	_, err := client.TransferUnits(context.Background(), "PROP1A2B3C", "rIssuer", "rSeller", "rBuyer", 100)
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
}

func TestHTTPClient_NodeErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := map[string]interface{}{
			"result": map[string]interface{}{
				"status":        "error",
				"error":         "actNotFound",
				"error_message": "Account not found.",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.AccountUnits(context.Background(), "rNobody", "rIssuer", "PROP1A2B3C")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := map[string]interface{}{
			"result": map[string]interface{}{
				"status": "success",
				"lines":  []interface{}{},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond), WithMaxRetries(5))

	units, err := client.AccountUnits(context.Background(), "rHolder", "rIssuer", "PROP1A2B3C")
	if err != nil {
		t.Fatalf("AccountUnits: %v", err)
	}
	if units != 0 {
		t.Errorf("units = %d, want 0", units)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestCurrencyCode(t *testing.T) {
	if got := CurrencyCode("USD"); got != "USD" {
		t.Errorf("three-char symbol should pass through, got %q", got)
	}

	code := CurrencyCode("PROP1A2B3C")
	if len(code) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(code))
	}
	// "PROP" is 50524F50 in ASCII hex.
	if code[:8] != "50524F50" {
		t.Errorf("code prefix = %q, want 50524F50", code[:8])
	}
	if code[len(code)-4:] != "0000" {
		t.Errorf("expected zero padding, got %q", code[len(code)-4:])
	}
}
