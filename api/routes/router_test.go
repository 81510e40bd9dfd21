package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tiendly/tiendly-backend/internal/ledger"
	"github.com/tiendly/tiendly-backend/internal/notifications"
	internalorders "github.com/tiendly/tiendly-backend/internal/orders"
	"github.com/tiendly/tiendly-backend/internal/receipts"
	pkgAuth "github.com/tiendly/tiendly-backend/pkg/auth"
	"github.com/tiendly/tiendly-backend/pkg/config"
	"github.com/tiendly/tiendly-backend/pkg/db/models"
	"github.com/tiendly/tiendly-backend/pkg/enums"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubUsersService struct{}

func (stubUsersService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (stubUsersService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (stubUsersService) GetOrCreateByEmail(ctx context.Context, email, firstName, lastName string) (*models.User, error) {
	return &models.User{ID: uuid.New(), Email: email, IsGuest: true}, nil
}

func (stubUsersService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	return &models.User{ID: uuid.New(), Email: email}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrdersService) Transition(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: input.NewStatus}, nil
}

func (stubOrdersService) AssignRedemptionCodes(ctx context.Context, input internalorders.AssignCodesInput) (*models.OrderLineItem, error) {
	return &models.OrderLineItem{ID: input.LineItemID, RedemptionCodes: input.Codes}, nil
}

func (stubOrdersService) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

type stubLedgerService struct{}

func (stubLedgerService) Post(ctx context.Context, input ledger.PostEntryInput) (*models.PointsTransaction, bool, error) {
	return &models.PointsTransaction{}, true, nil
}

func (stubLedgerService) HasEntry(ctx context.Context, orderID uuid.UUID, kind enums.PointsEntryKind) (bool, error) {
	return false, nil
}

func (stubLedgerService) BalanceOf(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 42, nil
}

func (stubLedgerService) EnsureBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	return nil
}

func (stubLedgerService) Adjust(ctx context.Context, input ledger.AdjustInput) (*models.PointsTransaction, error) {
	return &models.PointsTransaction{UserID: input.UserID, Delta: input.Delta}, nil
}

func (stubLedgerService) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsTransaction, string, error) {
	return nil, "", nil
}

type stubReceiptsService struct{}

func (stubReceiptsService) Create(ctx context.Context, input receipts.CreateReceiptInput) (*models.PointsReceipt, error) {
	return &models.PointsReceipt{}, nil
}

func (stubReceiptsService) Get(ctx context.Context, number string) (*models.PointsReceipt, error) {
	return &models.PointsReceipt{}, nil
}

func (stubReceiptsService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PointsReceipt, error) {
	return nil, nil
}

func (stubReceiptsService) Verify(ctx context.Context, number string) (*models.PointsReceipt, error) {
	return &models.PointsReceipt{}, nil
}

func (stubReceiptsService) ClaimForOrder(ctx context.Context, tx *gorm.DB, number string, orderID uuid.UUID) (*models.PointsReceipt, error) {
	return &models.PointsReceipt{ReceiptNumber: number, OrderID: &orderID}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) Create(ctx context.Context, input notifications.CreateNotificationInput) (*models.Notification, error) {
	return &models.Notification{}, nil
}

func (stubNotificationsService) List(ctx context.Context, userID *uuid.UUID, params pagination.Params) (*notifications.NotificationList, error) {
	return &notifications.NotificationList{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID *uuid.UUID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID *uuid.UUID) error {
	return nil
}

func (stubNotificationsService) CountUnread(ctx context.Context, userID *uuid.UUID) (int64, error) {
	return 0, nil
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
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: zerolog.Disabled, Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		stubPinger{},
		stubUsersService{},
		stubOrdersService{},
		stubLedgerService{},
		stubReceiptsService{},
		stubNotificationsService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config, admin bool) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "caller@example.com",
		Admin:  admin,
	})
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return token
}

func TestHealthzIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPointsBalanceRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/points/balance", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPointsBalanceSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/points/balance", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "42") {
		t.Fatalf("expected stub balance in body, got %s", resp.Body.String())
	}
}

func TestAdminGroupRequiresAdminFlag(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	target := "/api/admin/users/" + uuid.NewString() + "/points"
	body := `{"delta": 100, "reason": "promo credit"}`

	nonAdmin := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, true))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGuestOrderCreationSkipsAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{
		"guest_email": "guest@example.com",
		"currency": "MXN",
		"total": "157.49",
		"total_usd": "9.25",
		"items": [{"name": "Gift Card", "product_type": "gift_card", "category": "cards", "unit_price": "157.49", "qty": 1}],
		"payment": {"method": "bank", "bank_reference": "SPEI-1"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for guest order got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOrderCreationRejectsInvalidToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token got %d", resp.Code)
	}
}
