package notify

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

var trailingCode = regexp.MustCompile(`\((\d{3})\)$`)

type timingConfig struct {
	timeout      time.Duration
	rateInterval time.Duration
	rateBurst    int
}

var defaultTiming = timingConfig{
	timeout:      10 * time.Second,
	rateInterval: 1 * time.Second,
	rateBurst:    1,
}

// chatRecipient addresses a chat by numeric id or @username.
type chatRecipient string

func (c chatRecipient) Recipient() string {
	return string(c)
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	logger  zerolog.Logger
	bot     *tele.Bot
	chat    chatRecipient
	limiter *rate.Limiter
	timing  timingConfig
	apiURL  string
}

// TelegramOption customizes TelegramNotifier behavior.
type TelegramOption func(*TelegramNotifier)

// WithTelegramAPIURL points the bot at a different Bot API server.
func WithTelegramAPIURL(apiURL string) TelegramOption {
	return func(n *TelegramNotifier) {
		n.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithTelegramTiming overrides timeout and pacing (primarily for testing).
func WithTelegramTiming(timeout, rateInterval time.Duration, rateBurst int) TelegramOption {
	return func(n *TelegramNotifier) {
		n.timing.timeout = timeout
		n.timing.rateInterval = rateInterval
		n.timing.rateBurst = rateBurst
	}
}

// NewTelegramNotifier builds a notifier for a single chat. No network call is
// made; use Ping to verify the token.
func NewTelegramNotifier(logger zerolog.Logger, token, chatID string, opts ...TelegramOption) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.New("telegram chat id is empty")
	}

	n := &TelegramNotifier{
		logger: logger,
		chat:   chatRecipient(strings.TrimSpace(chatID)),
		timing: defaultTiming,
	}
	for _, opt := range opts {
		opt(n)
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     n.apiURL,
		Token:   token,
		Client:  newSingleAttemptClient(n.timing.timeout),
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	n.bot = bot
	if n.timing.rateInterval > 0 {
		n.limiter = rate.NewLimiter(rate.Every(n.timing.rateInterval), n.timing.rateBurst)
	}

	return n, nil
}

// Notify implements Notifier. It makes exactly one sendMessage attempt.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return &DeliveryError{Err: err}
		}
	}

	n.logger.Info().Str("chat", string(n.chat)).Msg("sending telegram message")
	if _, err := n.bot.Send(n.chat, message); err != nil {
		return &DeliveryError{Code: telegramErrorCode(err), Err: err}
	}

	n.logger.Debug().
		Str("chat", string(n.chat)).
		Str("message", message).
		Msg("telegram message sent")
	return nil
}

// Ping calls getMe to confirm the token is accepted.
func (n *TelegramNotifier) Ping(context.Context) error {
	if _, err := n.bot.Raw("getMe", nil); err != nil {
		return &DeliveryError{Code: telegramErrorCode(err), Err: err}
	}
	return nil
}

func telegramErrorCode(err error) int {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	// Descriptions telebot does not recognize come back as plain errors
	// ending in "(<code>)".
	if match := trailingCode.FindStringSubmatch(err.Error()); match != nil {
		code, _ := strconv.Atoi(match[1])
		return code
	}
	return 0
}

// newSingleAttemptClient returns an http.Client that never retries.
func newSingleAttemptClient(timeout time.Duration) *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}
	return client.StandardClient()
}
