package main

import (
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/pharmadrop/internal/config"
	"github.com/example/pharmadrop/internal/database"
	"github.com/example/pharmadrop/internal/events"
	"github.com/example/pharmadrop/internal/metrics"
	"github.com/example/pharmadrop/internal/middleware"
	"github.com/example/pharmadrop/internal/repository"
	"github.com/example/pharmadrop/internal/routes"
	"github.com/example/pharmadrop/internal/services"
)

var localOrigin = regexp.MustCompile(`^http://(localhost|127\.0\.0\.1|192\.168\.\d+\.\d+|10\.\d+\.\d+\.\d+)(:\d+)?$`)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL, cfg.IsProduction())
	store := repository.NewGormStore(db)
	m := metrics.New(cfg.MetricsNamespace)

	publisher := events.NewPublisher(nil)
	if client := events.NewClient(cfg.KafkaBrokers); client.Enabled() {
		publisher = events.NewPublisher(client.NewWriter(cfg.KafkaTopic))
		log.Printf("[Kafka] publishing order events to %s", cfg.KafkaTopic)
	}

	notifier := services.NewMultiNotifier(
		services.NewSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioMessagingServiceSID, cfg.TwilioPhoneNumber),
		services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat),
		services.NewEventNotifier(publisher),
	)
	log.Printf("[Notify] %d notifier(s) enabled", notifier.Len())

	orders := services.NewOrderService(store, notifier, m, cfg.NotifyTimeout)

	app := fiber.New(fiber.Config{
		AppName:      "PharmaDrop Backend",
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: localOrigin.MatchString,
		AllowCredentials: true,
	}))
	app.Use(m.Middleware())

	routes.Register(app, db, cfg, store, orders, m)

	keepalive := services.NewKeepalive(cfg.KeepaliveURL, cfg.KeepaliveSchedule, m)
	if err := keepalive.Start(); err != nil {
		log.Printf("[Keepalive] not started: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Printf("Shutting down server")
		keepalive.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}

	orders.Wait()
	if err := publisher.Close(); err != nil {
		log.Printf("[Kafka] close error: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("database close error: %v", err)
	}
}
