package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	checkoutsvc "github.com/hauslist/hauslist-backend/internal/checkout"
	"github.com/hauslist/hauslist-backend/internal/notifications"
	reconcilesvc "github.com/hauslist/hauslist-backend/internal/reconcile"
	subscriptionsvc "github.com/hauslist/hauslist-backend/internal/subscriptions"
	pkgAuth "github.com/hauslist/hauslist-backend/pkg/auth"
	"github.com/hauslist/hauslist-backend/pkg/config"
	"github.com/hauslist/hauslist-backend/pkg/db/models"
	"github.com/hauslist/hauslist-backend/pkg/enums"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSubscriptionsService struct{}

func (stubSubscriptionsService) CreateCheckoutSession(ctx context.Context, hostID uuid.UUID) (*subscriptionsvc.CheckoutSessionResult, error) {
	return &subscriptionsvc.CheckoutSessionResult{SessionID: "cs_test", URL: "https://billing.example/session"}, nil
}

func (stubSubscriptionsService) Cancel(ctx context.Context, hostID, propertyID uuid.UUID) (*subscriptionsvc.CancelResult, error) {
	return &subscriptionsvc.CancelResult{Success: true}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Verify(ctx context.Context, sessionID string, hostID uuid.UUID) (*checkoutsvc.Result, error) {
	return &checkoutsvc.Result{Verified: true}, nil
}

type stubReconcileService struct{}

func (stubReconcileService) Sync(ctx context.Context, hostID uuid.UUID) (*reconcilesvc.SyncResult, error) {
	return &reconcilesvc.SyncResult{Synced: true, Count: 1}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, hostID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, hostID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) NotifyBillingPaused(ctx context.Context, hostID, propertyID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) NotifyTrialEnding(ctx context.Context, hostID, propertyID uuid.UUID, endsAt time.Time) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil, // redis
		stubSubscriptionsService{},
		stubCheckoutService{},
		stubReconcileService{},
		stubNotificationsService{},
		nil, // stripe client
		nil, // stripe webhook service
	)
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		HostID: uuid.New(),
		Role:   enums.HostRoleHost,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestHealthReadyChecksDependencies(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for readiness got %d", resp.Code)
	}
}

func TestHostGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/host/notifications", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestBillingGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/host/billing/verify", strings.NewReader(`{"session_id":"cs_test"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestHostGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/host/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for notifications list got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestBillingVerifyWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/host/billing/verify", strings.NewReader(`{"session_id":"cs_test"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for billing verify got %d (%s)", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data checkoutsvc.Result `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Verified {
		t.Fatalf("expected verified result, got %+v", envelope.Data)
	}
}
