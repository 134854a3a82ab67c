package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicedesk/agent/internal/booking"
)

func TestClassifyParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"intent":"booking","confidence":0.92,"entities":{"service":"haircut"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	got, err := c.Classify(context.Background(), "I need a haircut", booking.Snapshot{})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Intent != "booking" || got.Entities.Service != "haircut" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	if _, err := c.Classify(context.Background(), "hi", booking.Snapshot{}); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestClassifyEmptyIntentFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence":0.9}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	if _, err := c.Classify(context.Background(), "hi", booking.Snapshot{}); err == nil {
		t.Fatalf("expected error on empty intent")
	}
}
