package telegram

import (
	"errors"
	"testing"

	"telegram-campaign-dispatch/internal/domain"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.DeliveryStatus
	}{
		{"nil error", nil, domain.DeliverySuccess},
		{"blocked by user", tele.ErrBlockedByUser, domain.DeliveryBlocked},
		{"user deactivated", tele.ErrUserIsDeactivated, domain.DeliveryUnreachable},
		{"chat not found", tele.ErrChatNotFound, domain.DeliveryUnreachable},
		{"bot not started", tele.ErrNotStartedByUser, domain.DeliveryUnreachable},
		{"rate limited", &tele.Error{Code: 429, Description: "Too Many Requests: retry after 5"}, domain.DeliveryTransient},
		{"network failure", errors.New("dial tcp: i/o timeout"), domain.DeliveryTransient},
		{"wrapped blocked", wrap(tele.ErrBlockedByUser), domain.DeliveryBlocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func wrap(err error) error {
	return errors.Join(errors.New("send message"), err)
}
