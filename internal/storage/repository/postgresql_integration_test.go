package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

func TestStorage_ConsumeToken(t *testing.T) {
	t.Run("успешное погашение", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		userID := factory.CreateUser(t, 555, "testuser")
		planID := factory.CreatePlan(t, "1 month", 30, 299, false)
		value := factory.CreateToken(t, planID)

		token, err := storage.ConsumeToken(context.Background(), value, userID)
		require.NoError(t, err)
		assert.True(t, token.IsUsed)
		require.NotNil(t, token.UsedBy)
		assert.Equal(t, userID, *token.UsedBy)

		verification := NewTestVerification(storage)
		verification.VerifyTokenUsed(t, value, userID)
	})

	t.Run("повторное погашение невозможно", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		userID := factory.CreateUser(t, 555, "testuser")
		otherID := factory.CreateUser(t, 556, "otheruser")
		planID := factory.CreatePlan(t, "1 month", 30, 299, false)
		value := factory.CreateToken(t, planID)

		_, err := storage.ConsumeToken(context.Background(), value, userID)
		require.NoError(t, err)

		_, err = storage.ConsumeToken(context.Background(), value, otherID)
		require.ErrorIs(t, err, ErrNotFound)

		// Первый потребитель остался владельцем
		verification := NewTestVerification(storage)
		verification.VerifyTokenUsed(t, value, userID)
	})

	t.Run("несуществующий токен", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		userID := factory.CreateUser(t, 555, "testuser")

		_, err := storage.ConsumeToken(context.Background(), "no-such-token", userID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("конкурентное погашение выигрывает ровно один", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "1 month", 30, 299, false)
		value := factory.CreateToken(t, planID)

		const workers = 10
		userIDs := make([]int64, workers)
		for i := range workers {
			userIDs[i] = factory.CreateUser(t, int64(1000+i), "user")
		}

		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = storage.ConsumeToken(context.Background(), value, userIDs[i])
			}(i)
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				require.True(t, errors.Is(err, ErrNotFound), "unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestStorage_GetUnusedToken(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, 555, "testuser")
	planID := factory.CreatePlan(t, "1 month", 30, 299, false)
	value := factory.CreateToken(t, planID)

	// Непогашенный токен читается без изменения состояния
	token, err := storage.GetUnusedToken(context.Background(), value)
	require.NoError(t, err)
	assert.False(t, token.IsUsed)
	assert.Nil(t, token.UsedBy)

	// После погашения токен неотличим от несуществующего
	_, err = storage.ConsumeToken(context.Background(), value, userID)
	require.NoError(t, err)

	_, err = storage.GetUnusedToken(context.Background(), value)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_UpsertUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	first, err := storage.UpsertUser(context.Background(), models.User{
		TelegramID: 555,
		Username:   "oldname",
		FirstName:  "Ivan",
	})
	require.NoError(t, err)

	second, err := storage.UpsertUser(context.Background(), models.User{
		TelegramID: 555,
		Username:   "newname",
		FirstName:  "Ivan",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "newname", second.Username)
}

func TestStorage_GetActiveSubscription(t *testing.T) {
	now := time.Now()

	t.Run("выбирается самая поздняя по дате начала", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		userID := factory.CreateUser(t, 555, "testuser")
		planID := factory.CreatePlan(t, "1 month", 30, 299, false)

		endLater := now.AddDate(0, 0, 30)
		factory.CreateSubscription(t, userID, planID, now.AddDate(0, 0, -10), &endLater, true)
		latest := factory.CreateSubscription(t, userID, planID, now.AddDate(0, 0, -1), &endLater, true)

		sub, err := storage.GetActiveSubscription(context.Background(), userID, now)
		require.NoError(t, err)
		assert.Equal(t, latest, sub.ID)
	})

	t.Run("истекшие и деактивированные не учитываются", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		userID := factory.CreateUser(t, 555, "testuser")
		planID := factory.CreatePlan(t, "1 month", 30, 299, false)

		past := now.AddDate(0, 0, -1)
		future := now.AddDate(0, 0, 30)
		factory.CreateSubscription(t, userID, planID, now.AddDate(0, 0, -31), &past, true)
		factory.CreateSubscription(t, userID, planID, now.AddDate(0, 0, -5), &future, false)

		_, err := storage.GetActiveSubscription(context.Background(), userID, now)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("бессрочная подписка всегда активна", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		userID := factory.CreateUser(t, 555, "testuser")
		planID := factory.CreatePlan(t, "forever", models.PermanentDurationDays, 9999, true)

		id := factory.CreateSubscription(t, userID, planID, now.AddDate(-1, 0, 0), nil, true)

		sub, err := storage.GetActiveSubscription(context.Background(), userID, now)
		require.NoError(t, err)
		assert.Equal(t, id, sub.ID)
		assert.Nil(t, sub.EndDate)
	})
}

func TestStorage_SweepExpired(t *testing.T) {
	now := time.Now()

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "1 month", 30, 299, false)

	expiredUser := factory.CreateUser(t, 100, "expired")
	activeUser := factory.CreateUser(t, 200, "active")
	permanentUser := factory.CreateUser(t, 300, "permanent")

	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 10)
	expiredID := factory.CreateSubscription(t, expiredUser, planID, now.AddDate(0, 0, -31), &past, true)
	activeID := factory.CreateSubscription(t, activeUser, planID, now.AddDate(0, 0, -20), &future, true)
	permanentID := factory.CreateSubscription(t, permanentUser, planID, now.AddDate(0, 0, -20), nil, true)

	swept, err := storage.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, expiredID, swept[0].ID)
	assert.Equal(t, int64(100), swept[0].TelegramID)

	verification := NewTestVerification(storage)
	verification.VerifySubscriptionActive(t, expiredID, false)
	verification.VerifySubscriptionActive(t, activeID, true)
	verification.VerifySubscriptionActive(t, permanentID, true)

	// Повторный запуск идемпотентен
	swept, err = storage.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, swept)
}

func TestStorage_ListExpiringWithin(t *testing.T) {
	now := time.Now()

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "1 month", 30, 299, false)

	soonUser := factory.CreateUser(t, 100, "soon")
	laterUser := factory.CreateUser(t, 200, "later")
	expiredUser := factory.CreateUser(t, 300, "expired")

	soon := now.Add(12 * time.Hour)
	later := now.Add(72 * time.Hour)
	past := now.Add(-time.Hour)
	soonID := factory.CreateSubscription(t, soonUser, planID, now.AddDate(0, 0, -29), &soon, true)
	factory.CreateSubscription(t, laterUser, planID, now.AddDate(0, 0, -27), &later, true)
	factory.CreateSubscription(t, expiredUser, planID, now.AddDate(0, 0, -31), &past, true)

	expiring, err := storage.ListExpiringWithin(context.Background(), now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, soonID, expiring[0].SubscriptionID)
	assert.Equal(t, int64(100), expiring[0].TelegramID)
	assert.Equal(t, "1 month", expiring[0].PlanName)
}

func TestStorage_Plans(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	id, err := storage.CreatePlan(context.Background(), models.Plan{
		Name:         "1 month",
		DurationDays: 30,
		Price:        299,
	})
	require.NoError(t, err)

	plan, err := storage.GetPlan(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "1 month", plan.Name)
	assert.Equal(t, 30, plan.DurationDays)

	_, err = storage.GetPlan(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)

	plans, err := storage.ListPlans(context.Background())
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}
