package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/ducats/internal/auth"
)

const pingProcedure = "/ducats.test.v1.PingService/Ping"

type pingMsg struct {
	Fail  string `json:"fail,omitempty"`
	Owner string `json:"owner,omitempty"`
}

type testCodec struct{}

func (testCodec) Name() string { return "json" }

func (testCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (testCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

// ping echoes the owner from the context, or fails as the request asks.
func ping(ctx context.Context, req *connect.Request[pingMsg]) (*connect.Response[pingMsg], error) {
	switch req.Msg.Fail {
	case "not_found":
		return nil, connect.NewError(connect.CodeNotFound, errors.New("project not found"))
	case "plain":
		return nil, errors.New("boom")
	}
	return connect.NewResponse(&pingMsg{Owner: GetOwner(ctx)}), nil
}

func newPingClient(t *testing.T, interceptors ...connect.Interceptor) *connect.Client[pingMsg, pingMsg] {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(pingProcedure, connect.NewUnaryHandler(pingProcedure, ping,
		connect.WithCodec(testCodec{}),
		connect.WithInterceptors(interceptors...),
	))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return connect.NewClient[pingMsg, pingMsg](http.DefaultClient, server.URL+pingProcedure, connect.WithCodec(testCodec{}))
}

func call(client *connect.Client[pingMsg, pingMsg], authHeader string, msg *pingMsg) (*connect.Response[pingMsg], error) {
	req := connect.NewRequest(msg)
	if authHeader != "" {
		req.Header().Set("Authorization", authHeader)
	}
	return client.CallUnary(context.Background(), req)
}

func TestRequireAuth(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	valid, err := tokens.Generate("sam")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	foreign, _ := auth.NewTokenManager("other-secret", time.Hour).Generate("sam")

	client := newPingClient(t, RequireAuth(tokens))

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"missing header", "", false},
		{"wrong scheme", "Basic " + valid, false},
		{"no token", "Bearer", false},
		{"garbage token", "Bearer not-a-token", false},
		{"foreign secret", "Bearer " + foreign, false},
		{"valid token", "Bearer " + valid, true},
		{"scheme is case-insensitive", "bearer " + valid, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := call(client, tt.header, &pingMsg{})
			if !tt.ok {
				if connect.CodeOf(err) != connect.CodeUnauthenticated {
					t.Fatalf("expected Unauthenticated, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("call failed: %v", err)
			}
			if resp.Msg.Owner != "sam" {
				t.Errorf("owner in context = %q, want sam", resp.Msg.Owner)
			}
		})
	}
}

func TestOwnerContext(t *testing.T) {
	if got := GetOwner(context.Background()); got != "" {
		t.Errorf("GetOwner on empty context = %q", got)
	}
	if got := GetOwner(WithOwner(context.Background(), "sam")); got != "sam" {
		t.Errorf("GetOwner = %q, want sam", got)
	}
}

// lockedBuffer is written by the server goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) records(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	b.buf.Reset()
	return out
}

func TestLoggingInterceptor(t *testing.T) {
	var logs lockedBuffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := newPingClient(t, LoggingInterceptor(logger))

	tests := []struct {
		name   string
		fail   string
		header string
		level  string
		msg    string
		code   string
		authed bool
	}{
		{"success", "", "Bearer x", "INFO", "RPC ok", "", true},
		{"connect error", "not_found", "", "WARN", "RPC error", "not_found", false},
		{"plain error", "plain", "", "ERROR", "RPC error", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call(client, tt.header, &pingMsg{Fail: tt.fail})

			recs := logs.records(t)
			if len(recs) != 1 {
				t.Fatalf("got %d log records, want 1: %v", len(recs), recs)
			}
			rec := recs[0]
			if rec["level"] != tt.level || rec["msg"] != tt.msg {
				t.Errorf("level/msg = %v/%v, want %s/%s", rec["level"], rec["msg"], tt.level, tt.msg)
			}
			if rec["procedure"] != pingProcedure {
				t.Errorf("procedure = %v", rec["procedure"])
			}
			if rec["authenticated"] != tt.authed {
				t.Errorf("authenticated = %v, want %v", rec["authenticated"], tt.authed)
			}
			if _, ok := rec["duration_ms"].(float64); !ok {
				t.Errorf("duration_ms missing: %v", rec)
			}
			code, hasCode := rec["code"]
			if tt.code == "" && hasCode {
				t.Errorf("unexpected code %v", code)
			}
			if tt.code != "" && code != tt.code {
				t.Errorf("code = %v, want %s", code, tt.code)
			}
		})
	}
}
