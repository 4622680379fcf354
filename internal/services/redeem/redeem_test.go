package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telegate/subscription-gatekeeper/internal/config"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
)

type TokensMock struct {
	mock.Mock
}

func (m *TokensMock) Redeem(ctx context.Context, value string) (*models.Token, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *TokensMock) Consume(ctx context.Context, value string, consumerID int64) (*models.Token, error) {
	args := m.Called(ctx, value, consumerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

type SubsMock struct {
	mock.Mock
}

func (m *SubsMock) Activate(ctx context.Context, userID, planID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type UsersMock struct {
	mock.Mock
}

func (m *UsersMock) UpsertUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type ChannelMock struct {
	mock.Mock
}

func (m *ChannelMock) IssueInvite(ctx context.Context, chatID int64) (string, bool) {
	args := m.Called(ctx, chatID)
	return args.String(0), args.Bool(1)
}

func (m *ChannelMock) CheckMembership(ctx context.Context, chatID, telegramID int64) bool {
	args := m.Called(ctx, chatID, telegramID)
	return args.Bool(0)
}

func (m *ChannelMock) SyncMembershipFlag(ctx context.Context, chatID int64, user *models.User) (bool, error) {
	args := m.Called(ctx, chatID, user)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTelegramConfig() config.Telegram {
	return config.Telegram{
		FreeChannelID: -1001,
		VIPChannelID:  -1002,
		AdminIDs:      []int64{999},
	}
}

func TestRedeemService_Redeem(t *testing.T) {
	end := time.Now().AddDate(0, 0, 30)

	t.Run("Full flow with invite", func(t *testing.T) {
		tokens := new(TokensMock)
		subs := new(SubsMock)
		users := new(UsersMock)
		channel := new(ChannelMock)

		users.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.TelegramID == 555 && !u.IsAdmin
		})).Return(&models.User{ID: 10, TelegramID: 555}, nil)
		tokens.On("Redeem", mock.Anything, "tok-1").
			Return(&models.Token{ID: 1, Value: "tok-1", PlanID: 2}, nil)
		tokens.On("Consume", mock.Anything, "tok-1", int64(10)).
			Return(&models.Token{ID: 1, Value: "tok-1", PlanID: 2, IsUsed: true}, nil)
		subs.On("Activate", mock.Anything, int64(10), int64(2)).
			Return(&models.Subscription{ID: 42, UserID: 10, PlanID: 2, IsActive: true, EndDate: &end}, nil)
		channel.On("IssueInvite", mock.Anything, int64(-1002)).
			Return("https://t.me/+vip", true)

		svc := NewRedeemService(tokens, subs, users, channel, testTelegramConfig(), newNoopLogger())
		result, err := svc.Redeem(context.Background(), models.DummyRedeem{Token: "tok-1", TelegramID: 555, Username: "user"})
		require.NoError(t, err)
		assert.Equal(t, int64(42), result.Subscription.ID)
		assert.Equal(t, "https://t.me/+vip", result.InviteLink)
		tokens.AssertExpectations(t)
	})

	t.Run("Admin flag set from config", func(t *testing.T) {
		tokens := new(TokensMock)
		subs := new(SubsMock)
		users := new(UsersMock)
		channel := new(ChannelMock)

		users.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.TelegramID == 999 && u.IsAdmin
		})).Return(&models.User{ID: 11, TelegramID: 999, IsAdmin: true}, nil)
		tokens.On("Redeem", mock.Anything, "tok-2").
			Return(&models.Token{ID: 2, Value: "tok-2", PlanID: 2}, nil)
		tokens.On("Consume", mock.Anything, "tok-2", int64(11)).
			Return(&models.Token{ID: 2, Value: "tok-2", PlanID: 2, IsUsed: true}, nil)
		subs.On("Activate", mock.Anything, int64(11), int64(2)).
			Return(&models.Subscription{ID: 43}, nil)
		channel.On("IssueInvite", mock.Anything, int64(-1002)).Return("", false)

		svc := NewRedeemService(tokens, subs, users, channel, testTelegramConfig(), newNoopLogger())
		result, err := svc.Redeem(context.Background(), models.DummyRedeem{Token: "tok-2", TelegramID: 999})
		require.NoError(t, err)
		assert.Empty(t, result.InviteLink)
		users.AssertExpectations(t)
	})

	t.Run("Consumed token stops the flow before Consume", func(t *testing.T) {
		tokens := new(TokensMock)
		subs := new(SubsMock)
		users := new(UsersMock)

		users.On("UpsertUser", mock.Anything, mock.Anything).
			Return(&models.User{ID: 10, TelegramID: 555}, nil)
		tokens.On("Redeem", mock.Anything, "used").
			Return(nil, repository.ErrNotFound)

		svc := NewRedeemService(tokens, subs, users, new(ChannelMock), testTelegramConfig(), newNoopLogger())
		_, err := svc.Redeem(context.Background(), models.DummyRedeem{Token: "used", TelegramID: 555})
		require.ErrorIs(t, err, repository.ErrNotFound)
		tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
		subs.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Race loser fails in Consume", func(t *testing.T) {
		tokens := new(TokensMock)
		subs := new(SubsMock)
		users := new(UsersMock)

		users.On("UpsertUser", mock.Anything, mock.Anything).
			Return(&models.User{ID: 10, TelegramID: 555}, nil)
		tokens.On("Redeem", mock.Anything, "raced").
			Return(&models.Token{ID: 4, Value: "raced", PlanID: 2}, nil)
		tokens.On("Consume", mock.Anything, "raced", int64(10)).
			Return(nil, repository.ErrNotFound)

		svc := NewRedeemService(tokens, subs, users, new(ChannelMock), testTelegramConfig(), newNoopLogger())
		_, err := svc.Redeem(context.Background(), models.DummyRedeem{Token: "raced", TelegramID: 555})
		require.ErrorIs(t, err, repository.ErrNotFound)
		subs.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Activation failure does not roll back the token", func(t *testing.T) {
		tokens := new(TokensMock)
		subs := new(SubsMock)
		users := new(UsersMock)
		channel := new(ChannelMock)

		users.On("UpsertUser", mock.Anything, mock.Anything).
			Return(&models.User{ID: 10, TelegramID: 555}, nil)
		tokens.On("Redeem", mock.Anything, "tok-3").
			Return(&models.Token{ID: 3, Value: "tok-3", PlanID: 99}, nil)
		tokens.On("Consume", mock.Anything, "tok-3", int64(10)).
			Return(&models.Token{ID: 3, Value: "tok-3", PlanID: 99, IsUsed: true}, nil)
		subs.On("Activate", mock.Anything, int64(10), int64(99)).
			Return(nil, repository.ErrNotFound)

		svc := NewRedeemService(tokens, subs, users, channel, testTelegramConfig(), newNoopLogger())
		_, err := svc.Redeem(context.Background(), models.DummyRedeem{Token: "tok-3", TelegramID: 555})
		require.Error(t, err)
		channel.AssertNotCalled(t, "IssueInvite", mock.Anything, mock.Anything)
	})
}

func TestRedeemService_CheckAccess(t *testing.T) {
	t.Run("Open access skips membership check", func(t *testing.T) {
		users := new(UsersMock)
		channel := new(ChannelMock)
		users.On("UpsertUser", mock.Anything, mock.Anything).
			Return(&models.User{ID: 10, TelegramID: 555}, nil)

		tg := testTelegramConfig()
		tg.FreeChannelOpenAccess = true
		svc := NewRedeemService(new(TokensMock), new(SubsMock), users, channel, tg, newNoopLogger())

		result, err := svc.CheckAccess(context.Background(), models.DummyAccessCheck{TelegramID: 555})
		require.NoError(t, err)
		assert.True(t, result.HasAccess)
		channel.AssertNotCalled(t, "SyncMembershipFlag", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Member has access", func(t *testing.T) {
		users := new(UsersMock)
		channel := new(ChannelMock)
		user := &models.User{ID: 10, TelegramID: 555}
		users.On("UpsertUser", mock.Anything, mock.Anything).Return(user, nil)
		channel.On("SyncMembershipFlag", mock.Anything, int64(-1001), user).Return(true, nil)

		svc := NewRedeemService(new(TokensMock), new(SubsMock), users, channel, testTelegramConfig(), newNoopLogger())
		result, err := svc.CheckAccess(context.Background(), models.DummyAccessCheck{TelegramID: 555})
		require.NoError(t, err)
		assert.True(t, result.HasAccess)
		assert.Empty(t, result.InviteLink)
	})

	t.Run("Non-member gets invite", func(t *testing.T) {
		users := new(UsersMock)
		channel := new(ChannelMock)
		user := &models.User{ID: 10, TelegramID: 555}
		users.On("UpsertUser", mock.Anything, mock.Anything).Return(user, nil)
		channel.On("SyncMembershipFlag", mock.Anything, int64(-1001), user).Return(false, nil)
		channel.On("IssueInvite", mock.Anything, int64(-1001)).
			Return("https://t.me/+free", true)

		svc := NewRedeemService(new(TokensMock), new(SubsMock), users, channel, testTelegramConfig(), newNoopLogger())
		result, err := svc.CheckAccess(context.Background(), models.DummyAccessCheck{TelegramID: 555})
		require.NoError(t, err)
		assert.False(t, result.HasAccess)
		assert.Equal(t, "https://t.me/+free", result.InviteLink)
	})
}
