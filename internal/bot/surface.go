package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"backoffice/internal/export"
	"backoffice/internal/notify"
)

// chatNotifier shows toasts as plain chat messages.
type chatNotifier struct {
	bot    *Bot
	chatID int64
}

func (n chatNotifier) Notify(_ context.Context, t notify.Toast) {
	if err := n.bot.sendText(n.chatID, toastText(t)); err != nil {
		n.bot.logger.Warn().Err(err).Int64("chat", n.chatID).Msg("send toast")
	}
}

func toastText(t notify.Toast) string {
	icon := "ℹ️"
	switch t.Severity {
	case notify.Success:
		icon = "✅"
	case notify.Error:
		icon = "⚠️"
	}
	return icon + " " + escape(t.Message)
}

// printOpener prefers a browser link that prints on load. Without a public
// web address the report is sent to the chat as a file instead.
func (b *Bot) printOpener(chatID int64) export.Opener {
	if b.deps.Web != nil && b.deps.Web.Accepting() {
		return b.deps.Web.Opener(func(_ context.Context, url string) error {
			return b.sendText(chatID, fmt.Sprintf("🖨 <a href=\"%s\">Open the printable report</a>", escape(url)))
		})
	}
	return documentOpener{bot: b, chatID: chatID}
}

type documentOpener struct {
	bot    *Bot
	chatID int64
}

func (o documentOpener) Open(context.Context) (export.Surface, error) {
	if o.chatID == 0 {
		return nil, export.ErrSurfaceBlocked
	}
	return &documentSurface{bot: o.bot, chatID: o.chatID}, nil
}

// documentSurface delivers the rendered report as a chat attachment.
type documentSurface struct {
	bot    *Bot
	chatID int64
	doc    *export.Document
}

func (s *documentSurface) Render(_ context.Context, doc export.Document) error {
	s.doc = &doc
	return nil
}

func (s *documentSurface) Print(context.Context) error {
	if s.doc == nil {
		return errors.New("nothing rendered")
	}
	msg := tgbotapi.NewDocument(s.chatID, tgbotapi.FileBytes{Name: s.doc.Filename, Bytes: s.doc.Body})
	msg.Caption = "🖨 Open the report and print it."
	_, err := s.bot.out.Send(msg)
	return err
}
