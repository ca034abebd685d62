package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/autoparts-payments/docs"
	"github.com/MikeMC777/autoparts-payments/internal/httpx"
	ord "github.com/MikeMC777/autoparts-payments/internal/order"
	"github.com/MikeMC777/autoparts-payments/internal/payment"
)

type deps struct {
	checkout   *payment.Checkout
	reconciler *payment.Reconciler
	orders     ord.Repository
	limiter    *httpx.RateLimiter
	hmacSecret string
}

func newRouter(d deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.UserContext())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	p := r.Group("/payments")
	p.POST("/initiate", initiateHandler(d.checkout))
	p.POST("/checkout", initiateHandler(d.checkout))
	p.GET("/orders", listOrdersHandler(d.orders))
	p.GET("/orders/:id", getOrderHandler(d.orders))

	// routes the gateway or a browser can hammer
	cb := p.Group("")
	if d.limiter != nil {
		cb.Use(d.limiter.Middleware())
	}
	cb.POST("/webhook", webhookHandler(d.reconciler, d.orders, d.hmacSecret))
	cb.GET("/result", resultHandler(d.reconciler, d.orders))
	cb.GET("/paymob-callback", paymobCallbackHandler(d.reconciler))
	cb.GET("/orders/:id/status", pollStatusHandler(d.reconciler))

	return r
}
