package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/shoproom/internal/app"
	"github.com/dkeye/shoproom/internal/app/cart"
	"github.com/dkeye/shoproom/internal/app/offer"
	"github.com/dkeye/shoproom/internal/app/orch"
	"github.com/dkeye/shoproom/internal/app/refund"
	"github.com/dkeye/shoproom/internal/config"
	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/dkeye/shoproom/internal/metrics"
	"github.com/dkeye/shoproom/internal/pricing"
	"github.com/dkeye/shoproom/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSignal struct{}

func (nopSignal) TrySend(core.Event) error { return nil }
func (nopSignal) Close()                   {}

type brokenCartStore struct{ *storage.MemoryCartStore }

func (brokenCartStore) Save(context.Context, *domain.Cart) error { return errors.New("disk full") }

type testEnv struct {
	router *gin.Engine
	orch   *orch.Orchestrator
}

func newEnv(t *testing.T, cartStore cart.Store, health ...HealthCheck) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := metrics.New()
	o := orch.New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{}, m)
	catalog, err := pricing.NewCatalog(map[string]string{"tee": "20.00", "mug": "5.00"})
	require.NoError(t, err)
	refunds := storage.NewMemoryRefundStore()

	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	r := SetupRouter(context.Background(), cfg, Deps{
		Orch:    o,
		Carts:   cart.NewService(cartStore, m),
		Offers:  offer.NewEngine(o, catalog),
		Refunds: refund.NewService(refunds, refunds, nil, m),
		Orders:  refunds,
		Metrics: m,
		Health:  health,
	})
	return &testEnv{router: r, orch: o}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mod func(*stdhttp.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func asUser(id string) func(*stdhttp.Request) {
	return func(r *stdhttp.Request) { r.Header.Set("X-User-ID", id) }
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCart_GuestSessionKeepsOwner(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())

	rec := env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 2}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = env.do(t, "GET", "/api/cart", nil, func(r *stdhttp.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	got := decode[domain.Cart](t, rec)
	assert.True(t, strings.HasPrefix(string(got.OwnerID), "guest-"))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	// a fresh client is a different guest
	rec = env.do(t, "GET", "/api/cart", nil, nil)
	assert.Empty(t, decode[domain.Cart](t, rec).Items)
}

func TestCart_MutationsAndSync(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())
	u := asUser("u1")

	rec := env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "variantId": "xl", "quantity": 1}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "variantId": "xl", "quantity": 2}, u)
	res := decode[cart.Result](t, rec)
	assert.Equal(t, 3, res.Cart.Items[0].Quantity)
	assert.True(t, res.Persisted)

	rec = env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 0}, u)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/cart/sync", map[string]any{"items": []map[string]any{
		{"productId": "tee", "variantId": "xl", "quantity": 5},
		{"productId": "mug", "quantity": 2.5},
		{"productId": "", "quantity": 1},
		{"productId": "mug", "quantity": 1},
	}}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	res = decode[cart.Result](t, rec)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, 2, res.Rejected[1].Index)
	require.Len(t, res.Cart.Items, 2)
	assert.Equal(t, 5, res.Cart.Items[0].Quantity)

	rec = env.do(t, "PATCH", "/api/cart/items/mug", map[string]any{"quantity": 4}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = env.do(t, "PATCH", "/api/cart/items/tee:xl", map[string]any{"quantity": 0}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	res = decode[cart.Result](t, rec)
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, "mug", res.Cart.Items[0].ProductID)

	rec = env.do(t, "DELETE", "/api/cart/items/tee:xl", nil, u)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	rec = env.do(t, "DELETE", "/api/cart", nil, u)
	assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
	rec = env.do(t, "GET", "/api/cart", nil, u)
	assert.Empty(t, decode[domain.Cart](t, rec).Items)
}

func TestCart_ProductIDWithSeparatorRejected(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())
	u := asUser("u1")

	rec := env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "sku:1", "quantity": 1}, u)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.do(t, "POST", "/api/cart/sync", map[string]any{"items": []map[string]any{
		{"productId": "sku:1", "quantity": 1},
	}}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	res := decode[cart.Result](t, rec)
	require.Len(t, res.Rejected, 1)
	assert.Empty(t, res.Cart.Items)

	// a separator inside the variant still addresses the line by key
	rec = env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "variantId": "1:xl", "quantity": 1}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, "PATCH", "/api/cart/items/tee:1:xl", map[string]any{"quantity": 3}, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[cart.Result](t, rec).Cart.Items[0].Quantity)
	rec = env.do(t, "DELETE", "/api/cart/items/tee:1:xl", nil, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[cart.Result](t, rec).Cart.Items)
}

func TestCart_SaveFailureReturnsMergedCart(t *testing.T) {
	env := newEnv(t, brokenCartStore{storage.NewMemoryCartStore()})

	rec := env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 1}, asUser("u1"))
	require.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	body := decode[struct {
		Error  string      `json:"error"`
		Result cart.Result `json:"result"`
	}](t, rec)
	assert.Equal(t, "persistence", body.Error)
	assert.False(t, body.Result.Persisted)
	require.Len(t, body.Result.Cart.Items, 1)
}

func TestRooms_OfferAndPreview(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())
	u := asUser("u1")

	rec := env.do(t, "PUT", "/api/rooms/live1/offer", map[string]any{"discountPercent": "25"}, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	conn := core.ConnectionID("c1")
	env.orch.Connect(conn, core.NewMemberSession(domain.NewMember("u1"), nopSignal{}), func() {})
	require.NoError(t, env.orch.Join(conn, "live1"))

	rec = env.do(t, "PUT", "/api/rooms/live1/offer", map[string]any{"discountPercent": "150"}, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	rec = env.do(t, "PUT", "/api/rooms/live1/offer", map[string]any{"offerId": "flash", "discountPercent": "25"}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "GET", "/api/rooms", nil, nil)
	rooms := decode[struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}](t, rec)
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, "flash", rooms.Rooms[0].OfferID)
	assert.Equal(t, 1, rooms.Rooms[0].MemberCount)

	env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 3}, u)

	rec = env.do(t, "GET", "/api/cart/preview?connection_id=c1", nil, u)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	p := decode[offer.Preview](t, rec)
	assert.True(t, p.Subtotal.Equal(decimal.NewFromInt(60)))
	assert.True(t, p.Total.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, "flash", p.OfferID)

	rec = env.do(t, "GET", "/api/cart/preview", nil, u)
	p = decode[offer.Preview](t, rec)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(60)))
	assert.Empty(t, p.OfferID)

	rec = env.do(t, "DELETE", "/api/rooms/live1/offer", nil, nil)
	assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
	rec = env.do(t, "GET", "/api/rooms/live1", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"offer"`)

	env.orch.Disconnect(conn)
	rec = env.do(t, "GET", "/api/rooms/live1", nil, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestRefunds_Lifecycle(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())

	rec := env.do(t, "POST", "/api/refunds", map[string]any{
		"orderId": "o1", "amount": "10", "reason": "late", "method": "cash",
	}, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	rec = env.do(t, "PUT", "/api/orders/o1", map[string]any{"total": "100.00"}, nil)
	require.Equal(t, stdhttp.StatusNoContent, rec.Code)

	rec = env.do(t, "POST", "/api/refunds", map[string]any{
		"orderId": "o1", "amount": "150", "reason": "late", "method": "cash",
	}, nil)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, "POST", "/api/refunds", map[string]any{
		"orderId": "o1", "amount": "40", "reason": "late", "method": "teleport",
	}, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/refunds", map[string]any{
		"orderId": "o1", "amount": "40", "reason": "late", "method": "store_credit",
	}, nil)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Refund](t, rec)
	assert.Equal(t, domain.RefundPending, created.Status)

	path := "/api/refunds/" + created.ID + "/process"
	rec = env.do(t, "POST", path, map[string]any{"status": "APPROVED"}, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", path, map[string]any{"status": "APPROVED", "transactionId": "tx-9"}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RefundApproved, decode[domain.Refund](t, rec).Status)

	rec = env.do(t, "POST", path, map[string]any{"status": "REJECTED", "rejectionReason": "oops"}, nil)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)

	rec = env.do(t, "GET", "/api/refunds/"+created.ID, nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "tx-9", decode[domain.Refund](t, rec).TransactionID)

	rec = env.do(t, "GET", "/api/orders/o1/refunds", nil, nil)
	list := decode[struct {
		Refunds []domain.Refund `json:"refunds"`
	}](t, rec)
	assert.Len(t, list.Refunds, 1)

	// 60 left after the approval
	rec = env.do(t, "POST", "/api/refunds", map[string]any{
		"orderId": "o1", "amount": "60.01", "reason": "late", "method": "cash",
	}, nil)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore(),
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	)

	rec := env.do(t, "GET", "/healthz", nil, nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")

	env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 1}, asUser("u1"))
	rec = env.do(t, "GET", "/metrics", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shoproom_cart_mutations_total{op="add",outcome="ok"} 1`)
}

func TestOwnerHeaderValidation(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())
	rec := env.do(t, "GET", "/api/cart", nil, asUser(strings.Repeat("x", domain.MaxOwnerIDLen+1)))
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestPreview_OtherOwnersConnectionGetsNoDiscount(t *testing.T) {
	env := newEnv(t, storage.NewMemoryCartStore())

	conn := core.ConnectionID("c-alice")
	env.orch.Connect(conn, core.NewMemberSession(domain.NewMember("alice"), nopSignal{}), func() {})
	require.NoError(t, env.orch.Join(conn, "live1"))
	rec := env.do(t, "PUT", "/api/rooms/live1/offer", map[string]any{"offerId": "flash", "discountPercent": "50"}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	mallory := asUser("mallory")
	env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 1}, mallory)

	rec = env.do(t, "GET", "/api/cart/preview?connection_id=c-alice", nil, mallory)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	p := decode[offer.Preview](t, rec)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(20)))
	assert.Empty(t, p.OfferID)

	alice := asUser("alice")
	env.do(t, "POST", "/api/cart/items", map[string]any{"productId": "tee", "quantity": 1}, alice)
	rec = env.do(t, "GET", "/api/cart/preview?connection_id=c-alice", nil, alice)
	p = decode[offer.Preview](t, rec)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "flash", p.OfferID)
}
