// Package services содержит бизнес-логику для управления тарифами и
// подписками, включая кеширование активной подписки.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
)

// Нарушения инвариантов тарифа отклоняются при создании и никогда
// не попадают в хранилище.
var (
	ErrInvalidDuration = errors.New("plan duration must be positive unless permanent")
	ErrInvalidPrice    = errors.New("plan price must not be negative")
)

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// CreateSubscription добавляет новую подписку и возвращает её ID.
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	// GetActiveSubscription возвращает активную подписку пользователя.
	GetActiveSubscription(ctx context.Context, userID int64, now time.Time) (*models.Subscription, error)
	// ListExpiringWithin возвращает подписки, истекающие в интервале (now, until].
	ListExpiringWithin(ctx context.Context, now, until time.Time) ([]*models.ExpiringInfo, error)
	// SweepExpired деактивирует истекшие подписки и возвращает затронутые строки.
	SweepExpired(ctx context.Context, now time.Time) ([]*models.SweptSubscription, error)
}

// PlanRepository определяет методы для работы с тарифами в хранилище.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan models.Plan) (int64, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

// UserRepository проверяет существование пользователей.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// SubscriptionService реализует бизнес-логику работы с тарифами и подписками.
type SubscriptionService struct {
	repo  SubscriptionRepository
	plans PlanRepository
	users UserRepository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, plans PlanRepository,
	users UserRepository, cache Cache, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:  repo,
		plans: plans,
		users: users,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

func activeCacheKey(userID int64) string {
	return fmt.Sprintf("subscription:active:%d", userID)
}

// CreatePlan создает новый тариф. Цена не может быть отрицательной,
// длительность должна быть положительной, если тариф не бессрочный.
// Для бессрочных тарифов хранится сентинел длительности: дата окончания
// подписки по такому тарифу никогда не вычисляется и свипер её не достигает.
func (s *SubscriptionService) CreatePlan(ctx context.Context, req models.DummyPlan) (*models.Plan, error) {
	if req.Price < 0 {
		return nil, ErrInvalidPrice
	}
	durationDays := req.DurationDays
	if req.IsPermanent {
		durationDays = models.PermanentDurationDays
	} else if durationDays <= 0 {
		return nil, ErrInvalidDuration
	}

	plan := models.Plan{
		Name:         req.Name,
		DurationDays: durationDays,
		Price:        req.Price,
		IsPermanent:  req.IsPermanent,
	}
	id, err := s.plans.CreatePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id

	s.log.Info("created new plan", slog.Int64("id", id), slog.String("name", plan.Name))
	return &plan, nil
}

// ListPlans возвращает все тарифы в порядке создания.
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	return s.plans.ListPlans(ctx)
}

// Activate создает активную подписку пользователя на тариф. Дата окончания
// вычисляется один раз: start + duration, для бессрочных тарифов остаётся
// пустой. Возвращает ErrNotFound хранилища, если тариф или пользователь
// не существует.
//
// Предыдущие подписки пользователя не деактивируются: как и в исходной
// системе, одновременно активных подписок может оказаться несколько, а
// GetActive разрешает неоднозначность детерминированно.
func (s *SubscriptionService) Activate(ctx context.Context, userID, planID int64) (*models.Subscription, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	start := s.now()
	sub := models.Subscription{
		UserID:    userID,
		PlanID:    planID,
		StartDate: start,
		IsActive:  true,
	}
	if !plan.IsPermanent {
		end := start.AddDate(0, 0, plan.DurationDays)
		sub.EndDate = &end
	}

	id, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}
	sub.ID = id

	s.log.Info("activated subscription",
		slog.Int64("id", id),
		slog.Int64("user_id", userID),
		slog.Int64("plan_id", planID))

	cacheKey := activeCacheKey(userID)
	if err := s.cache.Set(cacheKey, sub, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), sl.Err(err))
	}
	return &sub, nil
}

// GetActive возвращает активную подписку пользователя или nil, если её нет.
// Из нескольких активных выбирается подписка с самой поздней датой начала.
func (s *SubscriptionService) GetActive(ctx context.Context, userID int64) (*models.Subscription, error) {
	var cached models.Subscription
	cacheKey := activeCacheKey(userID)
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found && stillActive(&cached, s.now()) {
		return &cached, nil
	}

	result, err := s.repo.GetActiveSubscription(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", cacheKey), sl.Err(err))
	}
	return result, nil
}

// stillActive перепроверяет кешированную подписку по часам сервиса: запись
// в кеше может пережить дату окончания.
func stillActive(sub *models.Subscription, now time.Time) bool {
	if !sub.IsActive {
		return false
	}
	return sub.EndDate == nil || sub.EndDate.After(now)
}

// Status возвращает представление активной подписки пользователя платформы
// или nil, если активной подписки нет. Возвращает ErrNotFound хранилища для
// неизвестного пользователя.
func (s *SubscriptionService) Status(ctx context.Context, telegramID int64) (*models.SubscriptionStatus, error) {
	user, err := s.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	sub, err := s.GetActive(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}

	plan, err := s.plans.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	status := &models.SubscriptionStatus{
		PlanName:    plan.Name,
		IsPermanent: sub.EndDate == nil,
		EndDate:     sub.EndDate,
	}
	if sub.EndDate != nil {
		status.DaysLeft = int(sub.EndDate.Sub(s.now()).Hours() / 24)
	}
	return status, nil
}

// ListExpiringWithin возвращает активные подписки, истекающие в ближайшем
// окне, вместе с владельцами.
func (s *SubscriptionService) ListExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringInfo, error) {
	now := s.now()
	return s.repo.ListExpiringWithin(ctx, now, now.Add(window))
}

// SweepExpired деактивирует все подписки с наступившей датой окончания и
// возвращает затронутые строки. Операция идемпотентна: повторный вызов без
// новых истечений не затрагивает ни одной строки.
func (s *SubscriptionService) SweepExpired(ctx context.Context) ([]*models.SweptSubscription, error) {
	swept, err := s.repo.SweepExpired(ctx, s.now())
	if err != nil {
		return nil, err
	}

	for _, sub := range swept {
		cacheKey := activeCacheKey(sub.UserID)
		if err := s.cache.Invalidate(cacheKey); err != nil {
			s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	if len(swept) > 0 {
		s.log.Info("swept expired subscriptions", slog.Int("count", len(swept)))
	}
	return swept, nil
}
