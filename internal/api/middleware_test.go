package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AuthToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{
		"http://localhost:3000",
		"http://localhost",
		"http://127.0.0.1:5173",
		"http://127.0.0.1",
		"https://localhost:8443",
		"http://[::1]:3000",
	}
	for _, origin := range allowed {
		if !isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{
		"",
		"https://evil.com",
		"http://localhost.evil.com",
		"http://192.168.1.1:3000",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:3000/path",
		"http://user@localhost:3000",
	}
	for _, origin := range denied {
		if isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = true, want false", origin)
		}
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:12345", true},
		{"[::1]:12345", true},
		{"::1", true},
		{"[::1]", true},
		{"127.0.0.1", true},
		{"8.8.8.8:12345", false},
		{"10.0.0.1:3000", false},
		{"not-an-ip:1234", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isLoopbackRemoteAddr(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemoteAddr(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestCORSAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantACAO   string
	}{
		{"allowed get", http.MethodGet, "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"denied get still served", http.MethodGet, "https://evil.com", http.StatusOK, ""},
		{"no origin", http.MethodGet, "", http.StatusOK, ""},
		{"allowed preflight", http.MethodOptions, "http://127.0.0.1:5173", http.StatusNoContent, "http://127.0.0.1:5173"},
		{"denied preflight", http.MethodOptions, "https://evil.com", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodOptions {
					t.Fatal("handler should not be called for preflight")
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/state", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantACAO {
				t.Errorf("ACAO = %q, want %q", got, tt.wantACAO)
			}
		})
	}
}

func TestCORSAllowlist_Headers(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/playback/video", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	rr.Header().Set("Vary", "Accept-Encoding")

	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

	split := func(v string) []string {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	for _, h := range []string{"Range", "Authorization", "Content-Type"} {
		if !slices.Contains(split(rr.Header().Get("Access-Control-Allow-Headers")), h) {
			t.Errorf("Access-Control-Allow-Headers missing %q", h)
		}
	}
	for _, h := range []string{"Content-Range", "Accept-Ranges", "Content-Length"} {
		if !slices.Contains(split(rr.Header().Get("Access-Control-Expose-Headers")), h) {
			t.Errorf("Access-Control-Expose-Headers missing %q", h)
		}
	}
	vary := rr.Header().Values("Vary")
	if !slices.Contains(vary, "Accept-Encoding") || !slices.Contains(vary, "Origin") {
		t.Errorf("Vary = %v, want Accept-Encoding and Origin", vary)
	}
}

func TestLoopbackGuard(t *testing.T) {
	for addr, want := range map[string]int{
		"127.0.0.1:12345": http.StatusOK,
		"[::1]:12345":     http.StatusOK,
		"8.8.8.8:12345":   http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		LoopbackGuard()(okHandler()).ServeHTTP(rr, req)
		if rr.Code != want {
			t.Errorf("%s: status = %d, want %d", addr, rr.Code, want)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		tokens     staticTokens
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", staticTokens{token: "secret"}, http.StatusUnauthorized, CodeUnauthorized},
		{"wrong scheme", "Basic secret", staticTokens{token: "secret"}, http.StatusUnauthorized, CodeUnauthorized},
		{"wrong token", "Bearer nope", staticTokens{token: "secret"}, http.StatusUnauthorized, CodeUnauthorized},
		{"no stored token", "Bearer secret", staticTokens{}, http.StatusInternalServerError, CodeInternal},
		{"store error", "Bearer secret", staticTokens{err: errors.New("db locked")}, http.StatusInternalServerError, CodeInternal},
		{"valid", "Bearer secret", staticTokens{token: "secret"}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			AuthMiddleware(tt.tokens, discardLogger())(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if got := decodeJSONBody(t, rr)["code"]; got != tt.wantCode {
					t.Errorf("code = %v, want %s", got, tt.wantCode)
				}
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RequestIDMiddleware()(RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/state", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if id := rr.Header().Get("X-Request-ID"); len(id) != 8 {
		t.Errorf("X-Request-ID = %q, want 8 characters", id)
	}
}
