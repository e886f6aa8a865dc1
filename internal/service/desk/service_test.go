package desk

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"AgentDesk/internal/config"
)

func newTestService(url string) *Service {
	conf := &config.Config{}
	conf.Server.ApiURL = url
	conf.Server.AuthToken = "tok"
	return NewDeskService(conf, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetSession_ParsesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "s1",
			"user": {"id": "u1", "name": "Dana", "email": "dana@example.com"},
			"status": "ai_handling",
			"primary_agent_id": "agent-1",
			"support_agent_ids": ["agent-1", "agent-2"],
			"last_active": 150
		}`))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	sess, err := s.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.ID != "s1" || sess.Status != "ai_handling" {
		t.Errorf("session = %+v", sess)
	}
	if sess.User == nil || sess.User.Name != "Dana" {
		t.Error("user not parsed")
	}
	if len(sess.SupportAgentIDs) != 2 {
		t.Errorf("support agents = %d, want 2", len(sess.SupportAgentIDs))
	}
	if sess.LastActive != 150 {
		t.Errorf("LastActive = %d, want 150", sess.LastActive)
	}
}

func TestGetSession_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	if _, err := s.GetSession("s1"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestMarkRead(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	if err := s.MarkRead("s1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/sessions/s1/read" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestMarkRead_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestService(srv.URL)
	if err := s.MarkRead("s1"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := newTestService(srv.URL)

	valid, err := s.ValidateToken("good")
	if err != nil || !valid {
		t.Errorf("ValidateToken(good) = %v, %v, want true, nil", valid, err)
	}

	valid, err = s.ValidateToken("expired")
	if err != nil {
		t.Fatalf("ValidateToken(expired): %v", err)
	}
	if valid {
		t.Error("expired token must report invalid")
	}
}

func TestValidateToken_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	s := newTestService(srv.URL)
	if _, err := s.ValidateToken("tok"); err == nil {
		t.Error("expected transport error, not a validity verdict")
	}
}
