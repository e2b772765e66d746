package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"roomlink/internal/app"
	"roomlink/internal/config"
)

// nicknames maps gateway user IDs to their stored nickname
type nicknames map[string]string

// newProfileGateway serves the two profile endpoints token minting needs
func newProfileGateway(t *testing.T, users nicknames) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user_exists", func(w http.ResponseWriter, r *http.Request) {
		_, ok := users[r.URL.Query().Get("user_id")]
		_ = json.NewEncoder(w).Encode(ok)
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		name, ok := users[r.URL.Query().Get("user_id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"nickname": name})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startApplication runs the full service against a temp database and the
// given gateway, stopping it when the test ends
func startApplication(t *testing.T, gatewayURL string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "roomlink.db")
	cfg.Token.Secret = "integration-secret"
	cfg.Gateway.URL = gatewayURL
	cfg.RateLimit.Messages = 5

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})
	return application.Addr()
}

func getJSON(t *testing.T, rawURL string, out any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", rawURL, err)
		}
	}
	return resp.StatusCode
}

// mintToken asks the service for a room token on behalf of userID
func mintToken(t *testing.T, addr, userID, roomID string) string {
	t.Helper()
	q := url.Values{"user_id": {userID}, "room_id": {roomID}}
	var body struct {
		Token string `json:"token"`
	}
	if code := getJSON(t, "http://"+addr+"/api/v0/create_token?"+q.Encode(), &body); code != http.StatusOK {
		t.Fatalf("create_token for %s returned %d", userID, code)
	}
	return body.Token
}

func dialRoom(t *testing.T, addr, roomID, tok string) *websocket.Conn {
	t.Helper()
	u := fmt.Sprintf("ws://%s/ws/chat/%s?token=%s", addr, roomID, url.QueryEscape(tok))
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", roomID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// frame is the union of every server-to-client message shape
type frame struct {
	Type     string `json:"type"`
	IsOnline bool   `json:"is_online"`
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	RoomID   string `json:"room_id"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func expectPartnerStatus(t *testing.T, conn *websocket.Conn, online bool) {
	t.Helper()
	f := readFrame(t, conn)
	if f.Type != "partner_status" || f.IsOnline != online {
		t.Fatalf("expected partner_status online=%v, got %+v", online, f)
	}
}
