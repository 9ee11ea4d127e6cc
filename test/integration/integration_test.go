//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nholik/homework-sentinel/internal/homework"
	"github.com/nholik/homework-sentinel/internal/logging"
	"github.com/nholik/homework-sentinel/internal/notify"
	"github.com/nholik/homework-sentinel/internal/practicum"
	"github.com/nholik/homework-sentinel/internal/runner"
)

const (
	practicumToken = "practicum-token"
	telegramToken  = "123:abc"
	chatID         = "42"
)

type statusServer struct {
	mu        sync.Mutex
	fromDates []string
	bodies    []string
}

func (s *statusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "OAuth "+practicumToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fromDates = append(s.fromDates, r.URL.Query().Get("from_date"))
	body := s.bodies[0]
	if len(s.bodies) > 1 {
		s.bodies = s.bodies[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

type botServer struct {
	mu       sync.Mutex
	messages []string
}

func (b *botServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/bot"+telegramToken+"/sendMessage" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var payload struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ChatID != chatID {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		return
	}
	b.mu.Lock()
	b.messages = append(b.messages, payload.Text)
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
}

// TestIntegrationPollAndNotify drives real HTTP clients for both the status
// endpoint and the Bot API through several poll cycles.
//
// Run with: go test -tags=integration -v ./test/integration/...
func TestIntegrationPollAndNotify(t *testing.T) {
	status := &statusServer{bodies: []string{
		`{"homeworks": [{"homework_name": "A", "status": "reviewing"}], "current_date": 1000}`,
		`{"homeworks": [{"homework_name": "A", "status": "reviewing"}], "current_date": 1600}`,
		`{"homeworks": [{"homework_name": "A", "status": "approved"}], "current_date": 2200}`,
	}}
	statusSrv := httptest.NewServer(status)
	defer statusSrv.Close()

	bot := &botServer{}
	botSrv := httptest.NewServer(bot)
	defer botSrv.Close()

	logger := logging.NewWithWriter(io.Discard, "debug")

	client, err := practicum.NewHTTPClient(statusSrv.URL, practicumToken, 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	notifier, err := notify.NewTelegramNotifier(logger, telegramToken, chatID,
		notify.WithTelegramAPIURL(botSrv.URL),
		notify.WithTelegramTiming(5*time.Second, 0, 1),
	)
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	r := runner.New(logger, time.Minute,
		runner.WithClock(clockwork.NewFakeClockAt(time.Unix(500, 0))),
		runner.WithStatusClient(client),
		runner.WithNotifier(notifier),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := r.RunOnce(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}
	}

	if got := strings.Join(status.fromDates, ","); got != "500,1000,1000" {
		t.Fatalf("unexpected from_date sequence: %s", got)
	}
	if len(bot.messages) != 2 {
		t.Fatalf("expected two delivered messages, got %q", bot.messages)
	}
	want, _ := homework.ParseStatus(map[string]any{"homework_name": "A", "status": "approved"})
	if bot.messages[1] != want {
		t.Fatalf("unexpected last message: %q", bot.messages[1])
	}
	if r.Cursor() != 2200 {
		t.Fatalf("expected cursor 2200, got %d", r.Cursor())
	}
}
