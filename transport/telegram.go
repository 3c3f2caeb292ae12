package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oraraka-deko/microclaw/claw"
	"github.com/oraraka-deko/microclaw/device"
)

const (
	DefaultTelegramAPI = "https://api.telegram.org"
	ThinkingMessage    = "Thinking..."

	defaultPollInterval = time.Second
	defaultPollTries    = 5
)

// Telegram polls the Bot API for one update at a time and answers each
// message with an agent turn.
type Telegram struct {
	token    string
	baseURL  string
	client   *http.Client
	turns    Handler
	link     device.Link
	logger   *slog.Logger
	interval time.Duration
	tries    uint

	api    *tgbotapi.BotAPI
	offset int
}

func NewTelegram(token string, turns Handler) *Telegram {
	return &Telegram{
		token:    token,
		baseURL:  DefaultTelegramAPI,
		client:   &http.Client{Timeout: 30 * time.Second},
		turns:    turns,
		logger:   slog.New(slog.DiscardHandler),
		interval: defaultPollInterval,
		tries:    defaultPollTries,
	}
}

// WithBaseURL points the poller at a different Bot API endpoint.
func (t *Telegram) WithBaseURL(u string) *Telegram {
	t.baseURL = u
	return t
}

func (t *Telegram) WithHTTPClient(c *http.Client) *Telegram {
	if c != nil {
		t.client = c
	}
	return t
}

func (t *Telegram) WithLogger(l *slog.Logger) *Telegram {
	if l != nil {
		t.logger = l
	}
	return t
}

// WithLink skips polling while the link is down.
func (t *Telegram) WithLink(l device.Link) *Telegram {
	t.link = l
	return t
}

// WithPollInterval sets the idle delay between empty polls.
func (t *Telegram) WithPollInterval(d time.Duration) *Telegram {
	if d > 0 {
		t.interval = d
	}
	return t
}

// Run polls until ctx is cancelled. Poll failures are retried with
// exponential backoff; a poll that still fails is logged and the loop
// continues.
func (t *Telegram) Run(ctx context.Context) error {
	t.logger.Info("telegram poller started")
	for {
		if ctx.Err() != nil {
			return nil
		}
		if t.link != nil && !t.link.Connected() {
			t.idle(ctx)
			continue
		}

		handled, err := backoff.Retry(ctx, func() (bool, error) {
			return t.PollOnce(ctx)
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(t.tries),
			backoff.WithNotify(func(err error, next time.Duration) {
				t.logger.Warn("telegram poll failed, retrying", "error", err, "next", next)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Error("telegram poll failed", "error", err)
		}
		if !handled {
			t.idle(ctx)
		}
	}
}

// PollOnce fetches at most one update and answers it. It reports whether
// an update was consumed.
func (t *Telegram) PollOnce(ctx context.Context) (bool, error) {
	u, err := t.nextUpdate()
	if err != nil || u == nil {
		return false, err
	}
	t.offset = u.UpdateID

	if u.Message == nil || u.Message.Chat == nil || u.Message.Text == "" {
		return true, nil
	}
	chatID := u.Message.Chat.ID
	t.logger.Info("telegram message", "chat_id", chatID, "update_id", u.UpdateID)

	if err := t.SendMessage(chatID, ThinkingMessage); err != nil {
		t.logger.Warn("telegram send failed", "error", err)
	}
	out := t.turns.Handle(ctx, claw.TurnInput{Text: u.Message.Text})
	reply := out.Reply
	if reply == "" {
		reply = "No reply"
	}
	if err := t.SendMessage(chatID, reply); err != nil {
		t.logger.Warn("telegram send failed", "error", err)
	}
	return true, nil
}

// bot connects to the Bot API on first use. Connecting checks the token
// with getMe.
func (t *Telegram) bot() (*tgbotapi.BotAPI, error) {
	if t.api != nil {
		return t.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(t.token, t.baseURL+"/bot%s/%s", t.client)
	if err != nil {
		return nil, classify("getMe", err)
	}
	t.logger.Info("telegram bot connected", "username", api.Self.UserName)
	t.api = api
	return api, nil
}

func (t *Telegram) nextUpdate() (*tgbotapi.Update, error) {
	api, err := t.bot()
	if err != nil {
		return nil, err
	}
	cfg := tgbotapi.NewUpdate(t.offset + 1)
	cfg.Limit = 1
	updates, err := api.GetUpdates(cfg)
	if err != nil {
		return nil, classify("getUpdates", err)
	}
	if len(updates) == 0 {
		return nil, nil
	}
	return &updates[0], nil
}

// SendMessage posts text to a chat.
func (t *Telegram) SendMessage(chatID int64, text string) error {
	api, err := t.bot()
	if err != nil {
		return err
	}
	if _, err := api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// classify marks errors that retrying cannot fix, such as a revoked token.
func classify(method string, err error) error {
	err = fmt.Errorf("%s: %w", method, err)
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) &&
		(apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusNotFound) {
		return backoff.Permanent(err)
	}
	return err
}

func (t *Telegram) idle(ctx context.Context) {
	timer := time.NewTimer(t.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
