package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

const (
	failedToWriteResp = "failed to write response: %v"
	expectedErrGotNil = "expected error, got nil"
)

func TestClient_GetJSON_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "inception" {
			t.Errorf("expected query param q=inception, got %q", r.URL.Query().Get("q"))
		}

		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("expected X-Api-Key header, got %q", r.Header.Get("X-Api-Key"))
		}

		if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})

	params := url.Values{}
	params.Set("q", "inception")

	body, err := c.GetJSON(context.Background(), "/search", params, map[string]string{"X-Api-Key": "secret"})
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestClient_GetJSON_NonRetriableStatus(t *testing.T) {
	var calls int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.WriteHeader(http.StatusNotFound)

		if _, err := w.Write([]byte(`{"message":"not found"}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, MaxRetries: 3})

	_, err := c.GetJSON(context.Background(), "/titles/tt0000000", nil, nil)
	if err == nil {
		t.Fatal(expectedErrGotNil)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}

	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", httpErr.StatusCode)
	}

	if calls != 1 {
		t.Errorf("4xx must not be retried, got %d calls", calls)
	}
}

func TestClient_GetJSON_RetriesTransportFailure(t *testing.T) {
	var calls int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		if calls < 2 {
			// Drop the connection to simulate a transient network error.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}

			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack failed: %v", err)
			}

			_ = conn.Close()

			return
		}

		if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, MaxRetries: 3, Timeout: 5 * time.Second})

	body, err := c.GetJSON(context.Background(), "/", nil, nil)
	if err != nil {
		t.Fatalf("expected retry to recover, got error: %v", err)
	}

	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}

	if calls != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 success), got %d", calls)
	}
}

func TestClient_PostJSON_SendsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}

		if _, err := w.Write([]byte(`{}`)); err != nil {
			t.Errorf(failedToWriteResp, err)
		}
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL})

	if _, err := c.PostJSON(context.Background(), "/chat/completions", map[string]string{"model": "test"}, nil); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
}
