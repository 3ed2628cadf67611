package main

import (
	"log"

	"github.com/yudhasanggrama/lappygo-store/external/midtrans"
	"github.com/yudhasanggrama/lappygo-store/external/resend"

	"github.com/yudhasanggrama/lappygo-store/internal/config"
	"github.com/yudhasanggrama/lappygo-store/internal/db"
	"github.com/yudhasanggrama/lappygo-store/internal/events"
	"github.com/yudhasanggrama/lappygo-store/internal/middleware"
	"github.com/yudhasanggrama/lappygo-store/internal/repository"
	"github.com/yudhasanggrama/lappygo-store/internal/services"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	middleware.Init(cfg.JWTSecret)

	// ======================
	// INFRA
	// ======================
	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	// ======================
	// EXTERNALS
	// ======================
	mailer, err := resend.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	if err != nil {
		log.Fatal(err)
	}

	snapClient := midtrans.NewSnapClient(cfg.ServerKey, cfg.MidtransProd)
	coreClient := midtrans.NewCoreClient(cfg.ServerKey, cfg.MidtransProd)

	var publisher *events.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = events.NewPublisher(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			log.Printf("order events disabled: %v", err)
		}
	}
	defer publisher.Close()

	// ======================
	// REPOSITORIES
	// ======================
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	// ======================
	// SERVICES
	// ======================
	checkoutSvc := services.NewCheckoutService(
		orderRepo, paymentRepo, productRepo, profileRepo,
		snapClient, publisher,
		cfg.FreeShippingMin, cfg.ShippingFlatFee,
	)
	paymentSvc := services.NewPaymentService(
		orderRepo, paymentRepo, profileRepo,
		mailer, snapClient, coreClient, publisher,
		cfg.ServerKey, cfg.AppURL,
	)
	cancelSvc := services.NewCancelService(
		orderRepo, paymentRepo, profileRepo,
		mailer, coreClient, publisher,
		cfg.AppURL,
	)
	orderSvc := services.NewOrderService(orderRepo, paymentRepo, publisher)

	// ======================
	// ECHO
	// ======================
	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.PrometheusMiddleware())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	// ======================
	// ROUTES (ONLY REGISTRATION)
	// ======================
	registerOrderRoutes(api, checkoutSvc, orderSvc, cancelSvc, paymentSvc)
	registerPaymentRoutes(api, paymentSvc)
	registerAdminRoutes(api, orderSvc, cancelSvc)

	// ======================
	// SERVER
	// ======================
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
