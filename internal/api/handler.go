package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/service"
	"payment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	payments *service.PaymentService
}

// NewHandler creates a new HTTP handler
func NewHandler(payments *service.PaymentService) *Handler {
	return &Handler{
		payments: payments,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.POST("/transactions", h.initiatePayment)
		v1.GET("/transactions/:id", h.getTransaction)
		v1.PUT("/transactions/:id/status", h.paymentTokenGuard(), h.updateTransactionStatus)

		v1.POST("/payments", h.processGatewayPayment)
		v1.POST("/tokens/cards", h.tokenizeCard)
		v1.GET("/acceptance-tokens", h.getAcceptanceTokens)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts returns the catalog
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.payments.GetProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct returns a single product
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.payments.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// initiatePayment handles a new purchase intent
func (h *Handler) initiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.payments.InitiatePayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getTransaction returns one transaction
func (h *Handler) getTransaction(c *gin.Context) {
	tx, err := h.payments.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateTransactionStatus applies a client-driven terminal transition
func (h *Handler) updateTransactionStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	tx, err := h.payments.UpdateTransactionStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// processGatewayPayment hands a client-confirmed payment to the gateway
func (h *Handler) processGatewayPayment(c *gin.Context) {
	var req service.ProcessGatewayPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	remote, err := h.payments.ProcessGatewayPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, remote)
}

// tokenizeCard forwards card data to the gateway tokenizer
func (h *Handler) tokenizeCard(c *gin.Context) {
	var req gateway.CardTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	data, err := h.payments.TokenizeCard(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, data)
}

// getAcceptanceTokens returns the merchant consent tokens
func (h *Handler) getAcceptanceTokens(c *gin.Context) {
	tokens, err := h.payments.GetAcceptanceTokens(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// paymentTokenGuard requires the bearer token issued at initiation and
// checks it is bound to the transaction being updated
func (h *Handler) paymentTokenGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Payment token is missing",
			})
			return
		}

		claims, err := h.payments.VerifyPaymentToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid payment token",
			})
			return
		}

		if claims.TransactionID != c.Param("id") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Payment token is not bound to this transaction",
			})
			return
		}

		c.Set("paymentClaims", claims)
		c.Next()
	}
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// respondError maps domain errors onto HTTP statuses so clients can tell
// "too late" from "bad request"
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrAcceptanceTokenRequired):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrTransactionFinal):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrGatewayValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrGatewayUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrGateway):
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
