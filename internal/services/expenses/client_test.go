package expenses_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"pennysync/internal/services"
	"pennysync/internal/services/expenses"
)

func sampleExpense() expenses.Expense {
	return expenses.Expense{
		Vendor:   "Shell",
		Amount:   decimal.NewFromInt(52),
		Date:     "2024-11-01",
		Category: "Transportation",
		UserID:   "u1",
	}
}

func TestCreateReturnsRemoteID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["vendor"] != "Shell" || body["userId"] != "u1" {
			t.Errorf("unexpected request body: %v", body)
		}
		if _, present := body["groupId"]; present {
			t.Error("empty groupId must be omitted")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"doc-123"}`))
	}))
	defer server.Close()

	client := expenses.NewClient(server.URL)
	id, err := client.Create(context.Background(), sampleExpense())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "doc-123" {
		t.Fatalf("expected id doc-123, got %q", id)
	}
}

func TestCreateNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "write failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := expenses.NewClient(server.URL)
	_, err := client.Create(context.Background(), sampleExpense())
	if err == nil {
		t.Fatal("expected error for http 500")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCreateRequiresVendorAndUser(t *testing.T) {
	client := expenses.NewClient("http://127.0.0.1:0")

	expense := sampleExpense()
	expense.Vendor = ""
	if _, err := client.Create(context.Background(), expense); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing vendor, got %v", err)
	}

	expense = sampleExpense()
	expense.UserID = ""
	if _, err := client.Create(context.Background(), expense); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}
}

func TestCreateUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := expenses.NewClient(server.URL)
	_, err := client.Create(context.Background(), sampleExpense())
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
