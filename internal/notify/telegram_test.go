package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"
)

const testToken = "123:abc"

type botAPI struct {
	calls   int32
	methods chan string
	handler func(w http.ResponseWriter, method string, body map[string]any)
}

func newBotAPI(t *testing.T, handler func(w http.ResponseWriter, method string, body map[string]any)) (*botAPI, *httptest.Server) {
	t.Helper()
	api := &botAPI{methods: make(chan string, 16), handler: handler}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.calls, 1)
		prefix := "/bot" + testToken + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		api.methods <- method

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		api.handler(w, method, body)
	}))
	t.Cleanup(server.Close)
	return api, server
}

func writeOK(w http.ResponseWriter) {
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":1700000000,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
}

func newTestNotifier(t *testing.T, apiURL string, rateInterval time.Duration) *TelegramNotifier {
	t.Helper()
	notifier, err := NewTelegramNotifier(zerolog.New(io.Discard), testToken, "42",
		WithTelegramAPIURL(apiURL),
		WithTelegramTiming(time.Second, rateInterval, 1),
	)
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	return notifier
}

func TestTelegramNotifierSendsMessage(t *testing.T) {
	var gotChat, gotText any
	api, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		gotChat = body["chat_id"]
		gotText = body["text"]
		writeOK(w)
	})

	notifier := newTestNotifier(t, server.URL, 0)
	if err := notifier.Notify(context.Background(), "status changed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if method := <-api.methods; method != "sendMessage" {
		t.Fatalf("expected sendMessage, got %q", method)
	}
	if gotChat != "42" {
		t.Fatalf("unexpected chat_id: %v", gotChat)
	}
	if gotText != "status changed" {
		t.Fatalf("unexpected text: %v", gotText)
	}
}

func TestTelegramNotifierWrapsAPIError(t *testing.T) {
	api, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	notifier := newTestNotifier(t, server.URL, 0)
	err := notifier.Notify(context.Background(), "status changed")

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if deliveryErr.Code != http.StatusBadRequest {
		t.Fatalf("expected code 400, got %d", deliveryErr.Code)
	}
	if got := atomic.LoadInt32(&api.calls); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}

func TestTelegramNotifierDoesNotRetryServerErrors(t *testing.T) {
	api, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
	})

	notifier := newTestNotifier(t, server.URL, 0)
	err := notifier.Notify(context.Background(), "status changed")

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if got := atomic.LoadInt32(&api.calls); got != 1 {
		t.Fatalf("expected exactly one attempt, got %d", got)
	}
}

func TestTelegramNotifierTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	apiURL := server.URL
	server.Close()

	notifier := newTestNotifier(t, apiURL, 0)
	err := notifier.Notify(context.Background(), "status changed")

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
}

func TestTelegramNotifierRateLimitRespectsContext(t *testing.T) {
	api, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		writeOK(w)
	})

	notifier := newTestNotifier(t, server.URL, 500*time.Millisecond)
	if err := notifier.Notify(context.Background(), "first"); err != nil {
		t.Fatalf("expected first notify to succeed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := notifier.Notify(ctx, "second")
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError from limiter, got %v", err)
	}
	if got := atomic.LoadInt32(&api.calls); got != 1 {
		t.Fatalf("expected rate limit to block second call, got %d calls", got)
	}
}

func TestNewTelegramNotifierValidation(t *testing.T) {
	if _, err := NewTelegramNotifier(zerolog.Nop(), "", "42"); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := NewTelegramNotifier(zerolog.Nop(), testToken, " "); err == nil {
		t.Fatalf("expected error for empty chat id")
	}
}

func TestProbeSucceedsAfterTransientFailure(t *testing.T) {
	var getMeCalls int32
	_, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		if atomic.AddInt32(&getMeCalls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"Internal Server Error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"sentinel"}}`))
	})

	notifier := newTestNotifier(t, server.URL, 0)
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)

	if err := Probe(context.Background(), notifier, policy); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&getMeCalls); got != 2 {
		t.Fatalf("expected 2 getMe calls, got %d", got)
	}
}

func TestProbeStopsOnUnauthorized(t *testing.T) {
	var getMeCalls int32
	_, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		atomic.AddInt32(&getMeCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	})

	notifier := newTestNotifier(t, server.URL, 0)
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)

	err := Probe(context.Background(), notifier, policy)
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if deliveryErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", deliveryErr.Code)
	}
	if got := atomic.LoadInt32(&getMeCalls); got != 1 {
		t.Fatalf("expected no retries after unauthorized, got %d calls", got)
	}
}

func TestProbeStopsOnUnrecognizedForbidden(t *testing.T) {
	var getMeCalls int32
	_, server := newBotAPI(t, func(w http.ResponseWriter, method string, body map[string]any) {
		atomic.AddInt32(&getMeCalls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot token revoked by owner"}`))
	})

	notifier := newTestNotifier(t, server.URL, 0)
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)

	err := Probe(context.Background(), notifier, policy)
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if deliveryErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", deliveryErr.Code)
	}
	if got := atomic.LoadInt32(&getMeCalls); got != 1 {
		t.Fatalf("expected no retries after forbidden, got %d calls", got)
	}
}

func TestTelegramErrorCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "registered", err: tele.ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "unrecognized description", err: errors.New("telegram: Forbidden: user is deactivated (403)"), want: http.StatusForbidden},
		{name: "flood", err: tele.FloodError{RetryAfter: 3}, want: http.StatusTooManyRequests},
		{name: "transport", err: errors.New("telebot: dial tcp: connection refused"), want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := telegramErrorCode(tc.err); got != tc.want {
				t.Fatalf("telegramErrorCode() = %d, want %d", got, tc.want)
			}
		})
	}
}
