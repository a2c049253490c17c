package telegram

import (
	"context"
	"errors"
	"fmt"

	"telegram-campaign-dispatch/internal/domain"

	tele "gopkg.in/telebot.v4"
)

// Client implements ports.Gateway over the Telegram Bot API. All mapping
// from Telegram errors to the DeliveryStatus classification lives here;
// callers never see raw API errors except as retained diagnostics.
type Client struct {
	bot *tele.Bot
}

// New creates a Client. The token is verified against the API on startup.
func New(token string) (*Client, error) {
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Client{bot: bot}, nil
}

// Send delivers one message to a chat. Zero attachment refs send plain
// text, one sends a captioned photo, several send an album with the body
// as the caption of the first item only.
func (c *Client) Send(ctx context.Context, chatID int64, message string, attachmentRefs []string) (domain.DeliveryStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeliveryTransient, err
	}

	to := tele.ChatID(chatID)

	var err error
	switch len(attachmentRefs) {
	case 0:
		_, err = c.bot.Send(to, message)
	case 1:
		photo := &tele.Photo{File: tele.File{FileID: attachmentRefs[0]}, Caption: message}
		_, err = c.bot.Send(to, photo)
	default:
		album := make(tele.Album, 0, len(attachmentRefs))
		for i, ref := range attachmentRefs {
			photo := &tele.Photo{File: tele.File{FileID: ref}}
			if i == 0 {
				photo.Caption = message
			}
			album = append(album, photo)
		}
		_, err = c.bot.SendAlbum(to, album)
	}

	if err != nil {
		return classify(err), err
	}
	return domain.DeliverySuccess, nil
}

// classify maps a Telegram API error onto the closed DeliveryStatus set.
// Anything unrecognized counts as transient and stays eligible for resend.
func classify(err error) domain.DeliveryStatus {
	switch {
	case err == nil:
		return domain.DeliverySuccess
	case errors.Is(err, tele.ErrBlockedByUser):
		return domain.DeliveryBlocked
	case errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrNotStartedByUser):
		return domain.DeliveryUnreachable
	default:
		return domain.DeliveryTransient
	}
}
