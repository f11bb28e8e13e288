package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "tgcourier/pkg/logx"
)

const defaultCallTimeout = 60 * time.Second

// Telegram sends through the Bot API via telebot. The bot is used in
// send-only mode: no update poller is ever started.
type Telegram struct {
	bot *tele.Bot
	log logx.Logger
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    cfg.APIURL,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, log: log}, nil
}

// username is a non-numeric recipient (e.g. a public channel handle).
type username string

func (u username) Recipient() string { return string(u) }

func toRecipient(id string) tele.Recipient {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return tele.ChatID(n)
	}
	if !strings.HasPrefix(id, "@") {
		id = "@" + id
	}
	return username(id)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// checkAttachment classifies a missing or empty file as a permanent payload
// failure before any network traffic happens.
func checkAttachment(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: attachment %s: %v", ErrBadPayload, path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: attachment %s is empty", ErrBadPayload, path)
	}
	return nil
}

func (g *Telegram) SendText(ctx context.Context, recipient, text string) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	msg, err := g.bot.Send(toRecipient(recipient), text)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (g *Telegram) SendPhoto(ctx context.Context, recipient, path, caption string) (int, error) {
	if err := checkAttachment(path); err != nil {
		return 0, err
	}
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	photo := &tele.Photo{File: tele.FromDisk(path), Caption: caption}
	msg, err := g.bot.Send(toRecipient(recipient), photo)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (g *Telegram) SendDocument(ctx context.Context, recipient, path, caption string) (int, error) {
	if err := checkAttachment(path); err != nil {
		return 0, err
	}
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	doc := &tele.Document{
		File:     tele.FromDisk(path),
		FileName: filepath.Base(path),
		Caption:  caption,
	}
	msg, err := g.bot.Send(toRecipient(recipient), doc)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (g *Telegram) SendPoll(ctx context.Context, recipient, question string, options []string, correct int) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	poll := &tele.Poll{
		Type:          tele.PollQuiz,
		Question:      question,
		CorrectOption: correct,
		Anonymous:     true,
	}
	poll.AddOptions(options...)
	msg, err := g.bot.Send(toRecipient(recipient), poll)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (g *Telegram) DeleteMessage(ctx context.Context, recipient string, messageID int) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: delete needs a numeric chat id, got %q", ErrBadPayload, recipient)
	}
	return g.bot.Delete(tele.StoredMessage{
		ChatID:    chatID,
		MessageID: strconv.Itoa(messageID),
	})
}
