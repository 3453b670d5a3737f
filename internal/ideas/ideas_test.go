package ideas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const anonKey = "anon-key"

func signToken(t *testing.T, subject string) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte("ideas-test-secret-at-least-32-bytes!")},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	token, err := jwt.Signed(signer).Claims(jwt.Claims{
		Subject: subject,
		Expiry:  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return token
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, anonKey, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name, url, key string
	}{
		{"relative url", "/rest", anonKey},
		{"no scheme", "abc.supabase.co", anonKey},
		{"no key", "https://abc.supabase.co", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.url, tt.key); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	token := signToken(t, "user-42")
	var got []insert
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != tablePath || r.URL.Query().Get("select") != "*" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if r.Header.Get("apikey") != anonKey || r.Header.Get("Authorization") != "Bearer "+token {
			t.Errorf("unexpected credentials %q / %q", r.Header.Get("apikey"), r.Header.Get("Authorization"))
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"0b7d5c1e-8a4f-4c55-9d0e-1f2a3b4c5d6e","text":"night market series","status":"submitted","source":"cli","created_at":"2026-10-01T10:00:00Z","user_id":"user-42"}]`))
	}, WithAccessToken(token))

	idea, err := c.Submit(context.Background(), "  night market series ", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(got) != 1 || got[0].Text != "night market series" || got[0].Source != DefaultSource ||
		got[0].Status != DefaultStatus || got[0].UserID != "user-42" {
		t.Errorf("inserted rows = %+v", got)
	}
	if idea.ID.String() != "0b7d5c1e-8a4f-4c55-9d0e-1f2a3b4c5d6e" || idea.UserID != "user-42" {
		t.Errorf("idea = %+v", idea)
	}
	if idea.CreatedAt == nil || !idea.CreatedAt.Equal(time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", idea.CreatedAt)
	}
}

func TestSubmit_AnonymousUsesAnonKey(t *testing.T) {
	var got []insert
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+anonKey {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[{"id":"0b7d5c1e-8a4f-4c55-9d0e-1f2a3b4c5d6e","text":"x"}]`))
	})

	if _, err := c.Submit(context.Background(), "x", "ios"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got[0].UserID != "" || got[0].Source != "ios" {
		t.Errorf("inserted rows = %+v", got)
	}
}

func TestSubmit_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		status  int
		body    string
		wantMsg string
	}{
		{"rls violation", "x", http.StatusForbidden, `{"message":"new row violates row-level security policy"}`, "new row violates row-level security policy"},
		{"not json", "x", http.StatusBadGateway, `<html>`, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Submit(context.Background(), tt.text, "")
			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if rerr.StatusCode != tt.status || rerr.Message != tt.wantMsg {
				t.Errorf("error = %+v", rerr)
			}
		})
	}
}

func TestSubmit_LocalChecks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for an invalid idea")
	})
	if _, err := c.Submit(context.Background(), "   ", ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text: %v", err)
	}
	long := make([]rune, maxTextChars+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := c.Submit(context.Background(), string(long), ""); err == nil {
		t.Error("long text accepted")
	}

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent with an unreadable token")
	}, WithAccessToken("not-a-jwt"))
	if _, err := bad.Submit(context.Background(), "x", ""); err == nil {
		t.Error("unreadable token accepted")
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit string
	}{
		{"default", 0, "50"},
		{"custom", 5, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if r.Method != http.MethodGet || q.Get("order") != "created_at.desc" || q.Get("limit") != tt.wantLimit {
					t.Errorf("unexpected request %s %s", r.Method, r.URL)
				}
				w.Write([]byte(`[
					{"id":"0b7d5c1e-8a4f-4c55-9d0e-1f2a3b4c5d6e","text":"newest","created_at":"2026-10-02T00:00:00Z"},
					{"id":"1c8e6d2f-9b5a-4d66-8e1f-2a3b4c5d6e7f","text":"older","status":"reviewed"}
				]`))
			})
			ideas, err := c.List(context.Background(), tt.limit)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(ideas) != 2 || ideas[0].Text != "newest" || ideas[1].Status != "reviewed" || ideas[1].CreatedAt != nil {
				t.Errorf("ideas = %+v", ideas)
			}
		})
	}
}

func TestTokenSubject(t *testing.T) {
	sub, err := TokenSubject(signToken(t, "user-7"))
	if err != nil || sub != "user-7" {
		t.Errorf("TokenSubject = %q, %v", sub, err)
	}
	if _, err := TokenSubject("garbage"); err == nil {
		t.Error("garbage token accepted")
	}
}
