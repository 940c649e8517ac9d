package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"pennysync/internal/services"
	"pennysync/internal/services/analysis"
)

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestAnalyzeDecodesSingleExpense(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req analysis.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "coffee $5" {
			t.Errorf("unexpected text %q", req.Text)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"vendor":"Cafe","amount":5,"date":"2024-11-01","category":"Dining"}}`))
	}))
	defer server.Close()

	client := analysis.NewClient(server.URL)
	result, err := client.Analyze(context.Background(), analysis.Request{Text: "coffee $5"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Data) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(result.Data))
	}
	if result.Data[0].Vendor != "Cafe" || !result.Data[0].Amount.Equal(decimalFromInt(5)) {
		t.Fatalf("unexpected expense: %+v", result.Data[0])
	}
	if result.MultiExpense {
		t.Fatal("expected multiExpense false")
	}
}

func TestAnalyzeDecodesExpenseArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"vendor":"Cafe","amount":5,"date":"2024-11-01","category":"Dining"},{"vendor":"Shell","amount":52,"date":"2024-11-01","category":"Transportation"}],"multiExpense":true}`))
	}))
	defer server.Close()

	client := analysis.NewClient(server.URL)
	result, err := client.Analyze(context.Background(), analysis.Request{Text: "coffee and gas"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(result.Data))
	}
	if !result.MultiExpense {
		t.Fatal("expected multiExpense true")
	}
}

func TestAnalyzeNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := analysis.NewClient(server.URL)
	_, err := client.Analyze(context.Background(), analysis.Request{Text: "coffee"})
	if err == nil {
		t.Fatal("expected error for http 500")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestAnalyzeRequiresInput(t *testing.T) {
	client := analysis.NewClient("http://127.0.0.1:0")
	_, err := client.Analyze(context.Background(), analysis.Request{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`{"data":{"vendor":"Cafe","amount":5,"date":"2024-11-01","category":"Dining"}}`))
	}))
	defer server.Close()

	client := analysis.NewClient(server.URL, analysis.WithToken("secret"))
	if _, err := client.Analyze(context.Background(), analysis.Request{Text: "coffee"}); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}
