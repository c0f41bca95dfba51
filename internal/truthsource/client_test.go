package truthsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL:    srv.URL + "/api/",
		Timeout:    2 * time.Second,
		RetryCount: 0,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
}

func TestClient_GetOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/orders/purchaseorder/PO-200":
			w.Write([]byte(`{"orderNumber":"PO-200","partyName":"Acme Corp"}`))
		case "/api/orders/salesorder/SO 1":
			w.Write([]byte(`{"partyName":"Beta"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	rec, err := c.GetOrder(ctx, models.ModePO, "PO-200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || !rec.Exists || rec.PartyName != "Acme Corp" {
		t.Errorf("got %+v", rec)
	}

	rec, err = c.GetOrder(ctx, models.ModeShipDocs, "SO 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.OrderNumber != "SO 1" {
		t.Errorf("order number should default to the requested one, got %+v", rec)
	}

	rec, err = c.GetOrder(ctx, models.ModePO, "PO-404")
	if err != nil || rec != nil {
		t.Errorf("404 should be not-found, got %+v, %v", rec, err)
	}
}

func TestClient_FailuresAreErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>login</html>`))
		}},
		{"missing packages", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			if _, err := c.GetActivity(context.Background(), models.ModePO, "PO-1"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestClient_GetActivity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/purchaseorder/PO-200/activity" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"packages":[{"trackingNumber":"1z-999-aa1","date":"2024-02-03T10:00:00Z"},{"trackingNumber":"X1","date":""}]}`))
	})

	pkgs, err := c.GetActivity(context.Background(), models.ModePO, "PO-200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("packages: got %d, want 2", len(pkgs))
	}
	if pkgs[0].TrackingNumber != "1Z999AA1" || pkgs[0].Date.String() != "2024-02-03" {
		t.Errorf("package 1: %+v", pkgs[0])
	}
	if !pkgs[1].Date.IsZero() {
		t.Errorf("package 2 should have no date, got %v", pkgs[1].Date)
	}
}

func TestClient_FindByTrackingSendsHint(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"packages":[]}`))
	})

	pkgs, err := c.FindByTracking(context.Background(), models.ModeSO, "1Z999", models.MustDate("2024-01-07"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pkgs) != 0 {
		t.Errorf("got %d packages, want 0", len(pkgs))
	}
	if !strings.Contains(gotQuery, "tracking=1Z999") || !strings.Contains(gotQuery, "date=2024-01-07") {
		t.Errorf("query: %q", gotQuery)
	}
}

func TestClient_LookupTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	if _, err := c.GetOrder(context.Background(), models.ModePO, "PO-1"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("lookup was not bounded by its timeout")
	}
}

func TestClient_RejectsUnknownMode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := c.GetOrder(context.Background(), models.ModeUPS, "X"); err == nil {
		t.Error("expected error for UPS interpretation")
	}
}
