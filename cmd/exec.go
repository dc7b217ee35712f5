package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"concert-tix/config"
	"concert-tix/internal/handlers"
	"concert-tix/internal/services"
	"concert-tix/models"
	"concert-tix/monitoring"
	"concert-tix/pdf"
	"concert-tix/security"
	"concert-tix/utils"

	_ "concert-tix/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pn = pubnub.NewPubNub(pnConfig)
	}

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	inventoryService := services.NewInventoryService()
	cacheService := services.NewCacheService(redisClient, cfg.AvailabilityCacheTTL, cfg.DashboardCacheTTL)
	notifyService := services.NewNotifyService(pn)
	orderService := services.NewOrderService(app, inventoryService, cacheService, notifyService)

	renderer := pdf.NewTicketRenderer(cfg.TicketSigningKey)
	limiter := security.NewRateLimiter(redisClient)

	// Initialize handlers
	concertHandler := handlers.NewConcertHandler(app, cacheService)
	ticketHandler := handlers.NewTicketHandler(app, orderService, cacheService)
	orderHandler := handlers.NewOrderHandler(app, orderService, renderer, limiter, cfg)
	adminHandler := handlers.NewAdminHandler(app, orderService, cacheService, renderer)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Metrics endpoint on its own port
	if cfg.EnableMetrics {
		monitoring.StartMetricsServer(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	setupUserHooks(app)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Concert endpoints
		e.Router.GET("/api/v1/concerts", concertHandler.GetConcerts)
		e.Router.GET("/api/v1/concerts/{concertId}", concertHandler.GetConcert)
		e.Router.POST("/api/v1/concerts", concertHandler.CreateConcert)
		e.Router.PUT("/api/v1/concerts/{concertId}", concertHandler.UpdateConcert)
		e.Router.DELETE("/api/v1/concerts/{concertId}", concertHandler.DeleteConcert)
		e.Router.POST("/api/v1/concerts/{concertId}/tickets", ticketHandler.CreateTicketType)

		// Ticket type endpoints
		e.Router.GET("/api/v1/tickets/{ticketTypeId}", ticketHandler.GetTicketType)
		e.Router.PUT("/api/v1/tickets/{ticketTypeId}", ticketHandler.UpdateTicketType)
		e.Router.DELETE("/api/v1/tickets/{ticketTypeId}", ticketHandler.DeleteTicketType)

		// Order endpoints
		e.Router.POST("/api/v1/orders", orderHandler.CreateOrder)
		e.Router.GET("/api/v1/orders", orderHandler.GetOrders)
		e.Router.GET("/api/v1/orders/{orderId}", orderHandler.GetOrder)
		e.Router.POST("/api/v1/orders/{orderId}/submit-payment", orderHandler.SubmitPayment)
		e.Router.POST("/api/v1/orders/{orderId}/cancel", orderHandler.CancelOrder)
		e.Router.GET("/api/v1/orders/{orderId}/ticket", orderHandler.DownloadTicket)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/dashboard", adminHandler.GetDashboard)
		e.Router.GET("/api/v1/admin/orders", adminHandler.GetOrders)
		e.Router.PUT("/api/v1/admin/orders/{orderId}/verify", adminHandler.VerifyOrder)
		e.Router.POST("/api/v1/admin/orders/{orderId}/check-in", adminHandler.CheckInOrder)
		e.Router.GET("/api/v1/admin/users", adminHandler.GetUsers)
		e.Router.GET("/api/v1/admin/users/{userId}", adminHandler.GetUser)
		e.Router.PUT("/api/v1/admin/users/{userId}", adminHandler.UpdateUser)
		e.Router.GET("/api/v1/admin/reports/sales", adminHandler.GetSalesReport)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupUserHooks keeps user records consistent with the role model
func setupUserHooks(app *pocketbase.PocketBase) {
	// Self-registered accounts always start as regular users.
	app.OnRecordCreateRequest("users").BindFunc(func(e *core.RecordRequestEvent) error {
		if e.Auth == nil || e.Auth.GetString("role") != models.RoleAdmin {
			e.Record.Set("role", models.RoleUser)
		}
		return e.Next()
	})

	// Only admins may change roles.
	app.OnRecordUpdateRequest("users").BindFunc(func(e *core.RecordRequestEvent) error {
		if e.Auth != nil && e.Auth.GetString("role") == models.RoleAdmin {
			return e.Next()
		}
		if original, err := app.FindRecordById("users", e.Record.Id); err == nil {
			e.Record.Set("role", original.GetString("role"))
		}
		return e.Next()
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
