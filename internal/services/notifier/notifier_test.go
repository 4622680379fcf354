package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) SendMessage(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierService_HandleExpiring(t *testing.T) {
	end := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	body, err := json.Marshal(models.ExpiringInfo{
		SubscriptionID: 5,
		UserID:         10,
		TelegramID:     555,
		PlanName:       "1 month",
		EndDate:        end,
	})
	require.NoError(t, err)

	t.Run("Sends warning to subscription owner", func(t *testing.T) {
		sender := new(SenderMock)
		sender.On("SendMessage", mock.Anything, int64(555), mock.MatchedBy(func(text string) bool {
			return strings.Contains(text, "1 month") && strings.Contains(text, "02.06.2025")
		})).Return(nil)

		svc := NewNotifierService(sender, newNoopLogger())
		require.NoError(t, svc.HandleExpiring(context.Background(), body))
		sender.AssertExpectations(t)
	})

	t.Run("Send failure requeues the message", func(t *testing.T) {
		sender := new(SenderMock)
		sender.On("SendMessage", mock.Anything, int64(555), mock.Anything).
			Return(errors.New("flood limit"))

		svc := NewNotifierService(sender, newNoopLogger())
		require.Error(t, svc.HandleExpiring(context.Background(), body))
	})

	t.Run("Malformed body is dropped without error", func(t *testing.T) {
		sender := new(SenderMock)

		svc := NewNotifierService(sender, newNoopLogger())
		require.NoError(t, svc.HandleExpiring(context.Background(), []byte("not json")))
		sender.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
	})
}
