package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/auth"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/controller"
	paymentgrpc "github.com/vibast-solutions/ms-go-mobile-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/ratelimit"
	"github.com/vibast-solutions/ms-go-mobile-payments/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) API and the internal gRPC server of the mobile payments service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, deps := mustCreateDependencies()
	defer deps.Close()

	metrics.MustRegister()

	paymentController := controller.NewPaymentController(deps.paymentService, controller.PaymentControllerConfig{
		Mode:       cfg.App.Environment,
		Provider:   provider.CodeMaviance,
		BaseURL:    cfg.Maviance.BaseURL,
		WebhookURL: cfg.App.PublicBaseURL + webhookPath + provider.CodeMaviance,
		Currency:   cfg.Payments.Currency,
	})
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret)

	var limiter *ratelimit.Limiter
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		limiter = ratelimit.NewLimiter(redisClient, cfg.Redis.InitializePerMinute, cfg.Redis.RateLimitFailOpen)
	}

	e := setupHTTPServer(paymentController, authenticator, limiter)
	grpcSrv, lis := setupGRPCServer(cfg, paymentgrpc.NewServer(deps.paymentService))

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithFields(logrus.Fields{"addr": httpAddr, "mode": cfg.App.Environment}).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	paymentController *controller.PaymentController,
	authenticator *auth.Authenticator,
	limiter *ratelimit.Limiter,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(requestID())

	e.GET("/", paymentController.Index)
	e.GET("/health", paymentController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	payments := e.Group("/api/payments")
	payments.GET("/config", paymentController.Config)
	payments.GET("/status/:reference", paymentController.PaymentStatus)
	payments.POST("/webhook/:provider", paymentController.HandleProviderCallback)

	requireUser := authenticator.RequireUser()
	initializeMiddleware := []echo.MiddlewareFunc{requireUser}
	if limiter != nil {
		initializeMiddleware = append(initializeMiddleware, limiter.Middleware(ratelimit.ByUser))
	}
	payments.POST("/initialize", paymentController.InitializePayment, initializeMiddleware...)
	payments.GET("/verify/:reference", paymentController.VerifyPayment, requireUser)

	e.RouteNotFound("/*", paymentController.NotFound)

	return e
}

// requestID echoes the caller's X-Request-ID, generating one when absent.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if id == "" {
				id = uuid.NewString()
				ctx.Request().Header.Set(echo.HeaderXRequestID, id)
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(ctx)
		}
	}
}

func setupGRPCServer(cfg *config.Config, paymentServer *paymentgrpc.Server) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			paymentgrpc.RecoveryInterceptor(),
			paymentgrpc.RequestIDInterceptor(),
			paymentgrpc.LoggingInterceptor(),
			paymentgrpc.APIKeyInterceptor(cfg.App.APIKey),
		),
	)
	paymentgrpc.RegisterPaymentsInternalServer(grpcSrv, paymentServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(paymentgrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, lis
}
