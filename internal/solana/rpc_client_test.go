package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handler func(req rpcRequest) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		result, rpcErr := handler(req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		if req.Method != "sendTransaction" {
			t.Errorf("expected sendTransaction, got %s", req.Method)
		}
		return "5Sig111", nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), []byte("signed-tx"))
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5Sig111" {
		t.Errorf("expected signature 5Sig111, got %s", sig)
	}
}

func TestHTTPClient_SendTransaction_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := rpcServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		calls.Add(1)
		return nil, &rpcError{Code: -32002, Message: "Transaction simulation failed"}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3))
	_, err := client.SendTransaction(context.Background(), []byte("signed-tx"))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d calls", calls.Load())
	}
}

func TestHTTPClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "5Sig222",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(2), WithRetryDelay(10*time.Millisecond))
	sig, err := client.SendTransaction(context.Background(), []byte("signed-tx"))
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5Sig222" {
		t.Errorf("expected signature after retry, got %s", sig)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_GetSignatureStatus(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		if req.Method != "getSignatureStatuses" {
			t.Errorf("expected getSignatureStatuses, got %s", req.Method)
		}
		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"slot":               12345,
					"confirmations":      nil,
					"confirmationStatus": "finalized",
					"err":                nil,
				},
			},
		}, nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	status, err := client.GetSignatureStatus(context.Background(), "5Sig111")
	if err != nil {
		t.Fatalf("GetSignatureStatus: %v", err)
	}
	if !status.Confirmed() {
		t.Error("expected confirmed status")
	}
	if status.Failed() {
		t.Error("status should not be failed")
	}
}

func TestHTTPClient_GetSignatureStatus_Unknown(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		return map[string]interface{}{"value": []interface{}{nil}}, nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	status, err := client.GetSignatureStatus(context.Background(), "5SigMissing")
	if err != nil {
		t.Fatalf("GetSignatureStatus: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil status for unknown signature, got %+v", status)
	}
	if status.Confirmed() {
		t.Error("nil status must not read as confirmed")
	}
}
