package http

import (
	"context"
	stdhttp "net/http"

	"github.com/dkeye/shoproom/internal/adapters/signal"
	"github.com/dkeye/shoproom/internal/app/cart"
	"github.com/dkeye/shoproom/internal/app/offer"
	"github.com/dkeye/shoproom/internal/app/orch"
	"github.com/dkeye/shoproom/internal/app/refund"
	"github.com/dkeye/shoproom/internal/config"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/dkeye/shoproom/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	ownerKey      = "owner"
	ownerHeader   = "X-User-ID"
	sessionName   = "shoproom"
	sessionMaxAge = 3600 * 24 * 30
)

// OrderLedger records the refundable total of an order.
type OrderLedger interface {
	PutOrder(ctx context.Context, orderID string, total decimal.Decimal) error
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Orch    *orch.Orchestrator
	Carts   *cart.Service
	Offers  *offer.Engine
	Refunds *refund.Service
	Orders  OrderLedger
	Signal  *signal.SignalWSController
	Metrics *metrics.Metrics
	Health  []HealthCheck
}

// OwnerMiddleware resolves who the cart belongs to: an authenticated user id
// from the X-User-ID header, or a guest id kept in the cookie session.
func OwnerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(ownerHeader); raw != "" {
			owner, err := domain.ParseOwnerID(raw)
			if err != nil {
				c.AbortWithStatusJSON(stdhttp.StatusBadRequest, gin.H{"error": "invalid_owner", "message": err.Error()})
				return
			}
			c.Set(ownerKey, owner)
			c.Next()
			return
		}

		s := sessions.Default(c)
		guest, _ := s.Get(ownerKey).(string)
		if guest == "" {
			guest = string(domain.NewGuestOwner())
			s.Set(ownerKey, guest)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(ownerKey, domain.OwnerID(guest))
		c.Next()
	}
}

func ownerOf(c *gin.Context) domain.OwnerID {
	v, _ := c.Get(ownerKey)
	owner, _ := v.(domain.OwnerID)
	return owner
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: sessionMaxAge, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/healthz", healthHandler(d.Health))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	shop := api.Group("", OwnerMiddleware())
	carts := cartHandlers{carts: d.Carts, offers: d.Offers}
	shop.GET("/cart", carts.get)
	shop.DELETE("/cart", carts.clear)
	shop.POST("/cart/items", carts.addItem)
	shop.PATCH("/cart/items/:key", carts.updateItem)
	shop.DELETE("/cart/items/:key", carts.removeItem)
	shop.POST("/cart/sync", carts.sync)
	shop.GET("/cart/preview", carts.preview)

	if d.Signal != nil {
		shop.GET("/ws", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("owner", string(ownerOf(c))).Msg("ws signal endpoint hit")
			d.Signal.HandleSignal(ctx, c, ownerOf(c))
		})
	}

	rooms := roomHandlers{orch: d.Orch}
	api.GET("/rooms", rooms.list)
	api.GET("/rooms/:id", rooms.get)
	api.PUT("/rooms/:id/offer", rooms.bindOffer)
	api.DELETE("/rooms/:id/offer", rooms.clearOffer)

	refunds := refundHandlers{refunds: d.Refunds, orders: d.Orders}
	api.POST("/refunds", refunds.create)
	api.GET("/refunds/:id", refunds.get)
	api.POST("/refunds/:id/process", refunds.process)
	api.GET("/orders/:id/refunds", refunds.listByOrder)
	api.PUT("/orders/:id", refunds.putOrder)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{}
		code := stdhttp.StatusOK
		for _, hc := range checks {
			if err := hc.Check(c.Request.Context()); err != nil {
				status[hc.Name] = err.Error()
				code = stdhttp.StatusServiceUnavailable
				continue
			}
			status[hc.Name] = "ok"
		}
		c.JSON(code, gin.H{"status": stdhttp.StatusText(code), "checks": status})
	}
}
