package appclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yusari/worktimer/internal/api"
)

func newStubServer(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithClient(srv.URL, srv.Client())
}

func TestHealthDecodesEnvelope(t *testing.T) {
	client := newStubServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.HealthResponse{
			SchemaVersion: api.SchemaVersion,
			GeneratedAt:   time.Now().UTC(),
			Status:        "ok",
		})
	}))
	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %s, want ok", resp.Status)
	}
}

func TestAttachSendsDocumentKey(t *testing.T) {
	client := newStubServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req api.AttachRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.DocumentKey != "a.kra" {
			t.Errorf("document key = %s", req.DocumentKey)
		}
		_ = json.NewEncoder(w).Encode(api.SessionEnvelope{
			SchemaVersion: api.SchemaVersion,
			Session:       api.SessionResponse{DocumentKey: req.DocumentKey, State: "running"},
		})
	}))
	resp, err := client.Attach(context.Background(), "a.kra")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if resp.Session.State != "running" {
		t.Fatalf("state = %s", resp.Session.State)
	}
}

func TestSessionPathEscapesDocumentKey(t *testing.T) {
	var gotPath string
	client := newStubServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(api.SessionEnvelope{})
	}))
	_, err := client.Activity(context.Background(), "dir/my doc.kra")
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	want := "/v1/sessions/dir%2Fmy%20doc.kra/activity"
	if gotPath != want {
		t.Fatalf("path = %s, want %s", gotPath, want)
	}
}

func TestErrorEnvelopeBecomesRequestError(t *testing.T) {
	client := newStubServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			SchemaVersion: api.SchemaVersion,
			Error:         api.APIError{Code: "conflict", Message: "no pending decision request"},
		})
	}))
	_, err := client.Respond(context.Background(), "a.kra", "", true)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusConflict || reqErr.Code != "conflict" {
		t.Fatalf("reqErr = %+v", reqErr)
	}
	if reqErr.Error() != "no pending decision request (conflict)" {
		t.Fatalf("message = %q", reqErr.Error())
	}
}

func TestNonJSONErrorStillReported(t *testing.T) {
	client := newStubServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	_, err := client.Stats(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", reqErr.StatusCode)
	}
}

func TestPatchSettingsSendsOnlySetFields(t *testing.T) {
	client := newStubServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		if _, ok := raw["t_limit_minutes"]; !ok {
			t.Errorf("t_limit_minutes missing from patch")
		}
		if _, ok := raw["user_bias"]; ok {
			t.Errorf("unset user_bias was sent: %v", raw)
		}
		_ = json.NewEncoder(w).Encode(api.SettingsResponse{TLimitMinutes: 22})
	}))
	limit := 22
	resp, err := client.PatchSettings(context.Background(), api.SettingsPatch{TLimitMinutes: &limit})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if resp.TLimitMinutes != 22 {
		t.Fatalf("limit = %d, want 22", resp.TLimitMinutes)
	}
}
