package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/auth"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/factory"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/service"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/types"
)

// PaymentControllerConfig is the public, non-secret view of the provider setup.
type PaymentControllerConfig struct {
	Mode       string
	Provider   string
	BaseURL    string
	WebhookURL string
	Currency   string
}

type PaymentController struct {
	paymentService *service.PaymentService
	cfg            PaymentControllerConfig
	startedAt      time.Time
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService, cfg PaymentControllerConfig) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		cfg:            cfg,
		startedAt:      time.Now(),
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Index(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.IndexResponse{
		Success: true,
		Message: "Mobile payments service",
		Mode:    c.cfg.Mode,
		Endpoints: map[string]string{
			"initialize": "POST /api/payments/initialize",
			"verify":     "GET /api/payments/verify/:reference",
			"status":     "GET /api/payments/status/:reference",
			"webhook":    "POST /api/payments/webhook/:provider",
			"config":     "GET /api/payments/config",
			"health":     "GET /health",
		},
	})
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(c.startedAt).Seconds(),
		Mode:      c.cfg.Mode,
		Provider:  c.cfg.Provider,
	})
}

func (c *PaymentController) Config(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.ConfigResponse{
		Success: true,
		Config: &types.ProviderConfig{
			Provider:         c.cfg.Provider,
			Mode:             c.cfg.Mode,
			BaseURL:          c.cfg.BaseURL,
			WebhookURL:       c.cfg.WebhookURL,
			SupportedMethods: provider.SupportedMethods(),
			Currency:         c.cfg.Currency,
			Status:           "configured",
		},
	})
}

func (c *PaymentController) InitializePayment(ctx echo.Context) error {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return c.writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	req, err := types.NewInitializePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	req.UserId = user.ID
	req.UserEmail = user.Email
	req.UserName = user.Name

	item, err := c.paymentService.InitializePayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeInitializeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, &types.InitializePaymentResponse{
		Success: true,
		Message: "Payment initialized",
		Data:    mapper.TransactionToInitializeData(item),
	})
}

func (c *PaymentController) writeInitializeError(ctx echo.Context, err error) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	var authErr *provider.AuthError
	var providerErr *provider.ProviderError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.As(err, &authErr):
		logger.WithError(err).Error("Payment provider authentication failed")
		return c.writeError(ctx, http.StatusInternalServerError, "payment provider authentication failed")
	case errors.As(err, &providerErr):
		if providerErr.Unauthorized() {
			logger.WithError(err).Error("Payment provider rejected credentials")
			return c.writeError(ctx, http.StatusInternalServerError, "provider credentials misconfigured")
		}
		if providerErr.StatusCode >= 400 && providerErr.StatusCode < 500 {
			logger.WithError(err).Warn("Payment provider rejected the request")
			return c.writeError(ctx, http.StatusBadRequest, providerMessage(providerErr.Body))
		}
		logger.WithError(err).Error("Payment provider error")
		return c.writeError(ctx, http.StatusInternalServerError, "payment provider error")
	default:
		logger.WithError(err).Error("Initialize payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return c.writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	req := types.NewReferenceRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.VerifyPayment(ctx.Request().Context(), req.Reference, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "transaction not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Verify payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.TransactionToVerify(item))
}

func (c *PaymentController) PaymentStatus(ctx echo.Context) error {
	req := types.NewReferenceRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.PaymentStatus(ctx.Request().Context(), req.Reference)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "transaction not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment status failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.TransactionToStatus(item))
}

// HandleProviderCallback always answers 200 so the provider stops redelivering.
// Failures are logged and kept in the callback log.
func (c *PaymentController) HandleProviderCallback(ctx echo.Context) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	req, err := types.NewHandleProviderCallbackRequestFromContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("Unreadable provider callback")
		return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true, Message: "unreadable body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true, Message: err.Error()})
	}

	item, err := c.paymentService.HandleProviderCallback(ctx.Request().Context(), req)
	if err != nil {
		entry := logger.WithError(err).WithField("provider", req.GetProvider())
		switch {
		case errors.Is(err, service.ErrMissingReference):
			entry.Info("Provider callback without reference ignored")
			return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true})
		case errors.Is(err, service.ErrCallbackRejected), errors.Is(err, service.ErrProviderUnsupported):
			entry.Warn("Provider callback rejected")
			return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true, Message: "callback rejected"})
		case errors.Is(err, service.ErrTransactionNotFound):
			entry.Warn("Provider callback for unknown transaction")
			return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true, Message: "transaction not found"})
		default:
			entry.Error("Handle provider callback failed")
			return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true, Message: "processing error"})
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookResponse{Received: true, Success: true, Reference: item.Reference})
}

func (c *PaymentController) NotFound(ctx echo.Context) error {
	return ctx.JSON(http.StatusNotFound, &types.ErrorResponse{
		Message: "route not found",
		Path:    ctx.Request().URL.Path,
		Method:  ctx.Request().Method,
	})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Message: message})
}

func providerMessage(body string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	return "payment provider rejected the request"
}
