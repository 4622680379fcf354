package expiring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/telegate/subscription-gatekeeper/internal/models"
)

// MockService реализует интерфейс expiring.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ListExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringInfo, error) {
	args := m.Called(ctx, window)
	if res := args.Get(0); res != nil {
		return res.([]*models.ExpiringInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestExpiringHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "окно по умолчанию",
			url:  "/admin/subscriptions/expiring",
			setupMock: func(m *MockService) {
				m.On("ListExpiringWithin", mock.Anything, 24*time.Hour).
					Return([]*models.ExpiringInfo{{SubscriptionID: 5, TelegramID: 555, PlanName: "1 month"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":1`,
		},
		{
			name: "явное окно",
			url:  "/admin/subscriptions/expiring?window=72h",
			setupMock: func(m *MockService) {
				m.On("ListExpiringWithin", mock.Anything, 72*time.Hour).
					Return([]*models.ExpiringInfo{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":0`,
		},
		{
			name:           "некорректное окно",
			url:            "/admin/subscriptions/expiring?window=tomorrow",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid window parameter`,
		},
		{
			name:           "отрицательное окно",
			url:            "/admin/subscriptions/expiring?window=-1h",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid window parameter`,
		},
		{
			name: "ошибка сервиса",
			url:  "/admin/subscriptions/expiring",
			setupMock: func(m *MockService) {
				m.On("ListExpiringWithin", mock.Anything, 24*time.Hour).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not list expiring subscriptions`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
