package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/api/handlers"
	"github.com/veilvogue/marketapi/internal/api/middleware"
	"github.com/veilvogue/marketapi/internal/auth"
	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository"
	"github.com/veilvogue/marketapi/internal/repository/memory"
	"github.com/veilvogue/marketapi/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	decimal.MarshalJSONWithoutQuotes = true
}

type testServer struct {
	router *gin.Engine
	repos  *repository.Repositories
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos, _ := memory.NewRepositories()
	logger := zap.NewNop()
	cfg := &config.Config{Environment: "test", RequestTimeout: 5 * time.Second}
	jwt := auth.NewJWTService("test-secret-key-for-testing-purposes", "veilvogue", time.Hour)

	router := NewRouter(cfg, Services{
		Carts: service.NewCartService(repos, config.CartConfig{
			CustomizationSurcharge: domain.DefaultCustomizationSurcharge,
			MaxRetries:             3,
		}, logger),
		Orders: service.NewOrderService(repos, config.CheckoutConfig{}, logger),
		Tokens: jwt,
	}, logger)

	return &testServer{router: router, repos: repos, jwt: jwt}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role domain.Role) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(userID, "user@example.com", role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) product(t *testing.T, sellerID uuid.UUID, price int64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		SellerID: sellerID,
		Name:     "Linen Kaftan",
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		Verified: true,
	}
	require.NoError(t, s.repos.Product.Create(context.Background(), p))
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const checkoutBody = `{
	"shippingAddress": {"address": "3 Hashemi St", "city": "Irbid", "postalCode": "21110", "country": "Jordan"},
	"paymentMethod": "card",
	"taxPrice": 0,
	"shippingPrice": 0
}`

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, route := range [][2]string{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/orders/myorders"},
	} {
		rec := s.do(t, route[0], route[1], "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route[1])
	}
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)
	customer := uuid.New()
	token := s.token(t, customer, domain.RoleCustomer)
	plain := s.product(t, uuid.New(), 100, 10)
	custom := s.product(t, uuid.New(), 50, 10)

	rec := s.do(t, http.MethodGet, "/api/cart", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[handlers.CartResponse](t, rec)
	assert.Empty(t, empty.Items)
	assert.True(t, empty.TotalAmount.IsZero())

	rec = s.do(t, http.MethodPost, "/api/cart/add", token,
		`{"productId":"`+plain.ID.String()+`","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/cart/add", token,
		`{"productId":"`+custom.ID.String()+`","quantity":1,"customizationDetails":"{\"size\":\"M\"}"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cart := decode[handlers.CartResponse](t, rec)
	require.Len(t, cart.Items, 2)
	assert.True(t, decimal.NewFromInt(400).Equal(cart.TotalAmount), cart.TotalAmount.String())
	assert.True(t, decimal.NewFromInt(150).Equal(cart.Items[1].CustomizationSurcharge))

	rec = s.do(t, http.MethodPut, "/api/cart/update/"+plain.ID.String(), token, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart = decode[handlers.CartResponse](t, rec)
	assert.True(t, decimal.NewFromInt(500).Equal(cart.TotalAmount), cart.TotalAmount.String())

	rec = s.do(t, http.MethodDelete, "/api/cart/remove/"+cart.Items[1].ID, token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed := decode[struct {
		Message string                `json:"message"`
		Cart    handlers.CartResponse `json:"cart"`
	}](t, rec)
	assert.Equal(t, "Product removed from cart", removed.Message)
	assert.Len(t, removed.Cart.Items, 1)
	assert.True(t, decimal.NewFromInt(300).Equal(removed.Cart.TotalAmount))
}

func TestCartErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New(), domain.RoleCustomer)
	p := s.product(t, uuid.New(), 100, 1)

	rec := s.do(t, http.MethodPost, "/api/cart/add", token, `{"productId":"`+p.ID.String()+`","quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient")

	rec = s.do(t, http.MethodPost, "/api/cart/add", token, `{"productId":"`+uuid.NewString()+`","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cart/add", token, `{"productId":"`+p.ID.String()+`","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cart/add", token, `{"productId":"nope","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/cart/remove/"+uuid.NewString(), token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	customer := uuid.New()
	token := s.token(t, customer, domain.RoleCustomer)
	p := s.product(t, uuid.New(), 100, 10)

	rec := s.do(t, http.MethodPost, "/api/orders", token, checkoutBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no items in cart")

	rec = s.do(t, http.MethodPost, "/api/cart/add", token, `{"productId":"`+p.ID.String()+`","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders", token, checkoutBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[handlers.OrderResponse](t, rec)
	assert.Equal(t, customer.String(), order.CustomerID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(200).Equal(order.TotalPrice))
	assert.False(t, order.IsPaid)
	assert.Equal(t, "Irbid", order.ShippingAddress.City)

	rec = s.do(t, http.MethodGet, "/api/cart", token, "")
	assert.Empty(t, decode[handlers.CartResponse](t, rec).Items)

	rec = s.do(t, http.MethodGet, "/api/orders/"+order.ID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/myorders", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]handlers.OrderResponse](t, rec), 1)

	rec = s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/pay", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	paid := decode[handlers.OrderResponse](t, rec)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)

	rec = s.do(t, http.MethodPut, "/api/orders/"+order.ID+"/pay", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, *paid.PaidAt, *decode[handlers.OrderResponse](t, rec).PaidAt)
}

func TestCheckoutValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New(), domain.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/api/orders", token, `{"paymentMethod":"card"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "shippingAddress")

	rec = s.do(t, http.MethodPost, "/api/orders", token, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New(), domain.RoleCustomer)
	p := s.product(t, uuid.New(), 100, 10)

	rec := s.do(t, http.MethodPost, "/api/cart/add", token, `{"productId":"`+p.ID.String()+`","quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	first := s.do(t, http.MethodPost, "/api/orders", token, checkoutBody, middleware.IdempotencyHeader, "checkout-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := s.do(t, http.MethodPost, "/api/orders", token, checkoutBody, middleware.IdempotencyHeader, "checkout-1")
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	assert.Equal(t,
		decode[handlers.OrderResponse](t, first).ID,
		decode[handlers.OrderResponse](t, replay).ID,
	)

	otherBody := strings.Replace(checkoutBody, `"card"`, `"cash"`, 1)
	conflict := s.do(t, http.MethodPost, "/api/orders", token, otherBody, middleware.IdempotencyHeader, "checkout-1")
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestOrderOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, uuid.New(), domain.RoleCustomer)
	other := s.token(t, uuid.New(), domain.RoleCustomer)
	p := s.product(t, uuid.New(), 100, 10)

	s.do(t, http.MethodPost, "/api/cart/add", owner, `{"productId":"`+p.ID.String()+`","quantity":1}`)
	rec := s.do(t, http.MethodPost, "/api/orders", owner, checkoutBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[handlers.OrderResponse](t, rec).ID

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/orders/"+id, other, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/orders/"+id+"/pay", other, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/orders/not-a-uuid", owner, "").Code)
}

func TestSellerAndAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	sellerID := uuid.New()
	customer := s.token(t, uuid.New(), domain.RoleCustomer)
	seller := s.token(t, sellerID, domain.RoleSeller)
	admin := s.token(t, uuid.New(), domain.RoleAdmin)

	mine := s.product(t, sellerID, 80, 10)
	theirs := s.product(t, uuid.New(), 30, 10)
	s.do(t, http.MethodPost, "/api/cart/add", customer, `{"productId":"`+mine.ID.String()+`","quantity":2}`)
	s.do(t, http.MethodPost, "/api/cart/add", customer, `{"productId":"`+theirs.ID.String()+`","quantity":1}`)
	rec := s.do(t, http.MethodPost, "/api/orders", customer, checkoutBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[handlers.OrderResponse](t, rec).ID

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/orders/seller/myorders", customer, "").Code)

	rec = s.do(t, http.MethodGet, "/api/orders/seller/myorders", seller, "")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]handlers.OrderResponse](t, rec)
	require.Len(t, views, 1)
	require.Len(t, views[0].Items, 1)
	assert.Equal(t, mine.ID.String(), views[0].Items[0].ProductID)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, "/api/orders/"+id+"/deliver", customer, "").Code)

	// delivery requires payment first
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/orders/"+id+"/deliver", admin, "").Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/orders/"+id+"/pay", customer, "").Code)
	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/deliver", admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	delivered := decode[handlers.OrderResponse](t, rec)
	assert.True(t, delivered.IsDelivered)
	assert.NotNil(t, delivered.DeliveredAt)
}
