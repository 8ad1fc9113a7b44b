package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-lease/internal/capacity"
	"github.com/iliyamo/seat-lease/internal/config"
	"github.com/iliyamo/seat-lease/internal/database"
	"github.com/iliyamo/seat-lease/internal/handler"
	"github.com/iliyamo/seat-lease/internal/inventory"
	"github.com/iliyamo/seat-lease/internal/middleware"
	"github.com/iliyamo/seat-lease/internal/queue"
	"github.com/iliyamo/seat-lease/internal/repository"
	"github.com/iliyamo/seat-lease/internal/router"
	queue_publisher "github.com/iliyamo/seat-lease/internal/service"
)

func main() {
	_ = godotenv.Load() // optional .env for local development
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting and capacity caching disabled")
	}

	ledger := repository.NewSessionLedgerRepo(db)
	objects := repository.NewObjectRepo(db)
	attendees := repository.NewAttendeeRepo(db)

	inv := inventory.New(cfg.InventoryBaseURL, cfg.InventoryToken, attendees,
		inventory.WithAttendeeBatchSize(cfg.AttendeeBatchSize))
	capProvider := capacity.NewCachedProvider(
		capacity.NewHTTPProvider(cfg.InventoryBaseURL, cfg.InventoryToken, objects),
		rdb, cfg.CapacityCacheTTL)

	h := handler.NewLeaseHandler(ledger, inv, objects, capProvider, handler.LeaseConfig{
		HoldTTL:       cfg.HoldTTL,
		CheckoutGrace: cfg.CheckoutGrace,
		CookieTTL:     cfg.CookieTTL,
		CookieSecure:  cfg.CookieSecure,
	})
	h.Events = queue_publisher.NewPublisher()

	go func() {
		if err := queue.StartLeaseConsumer(); err != nil {
			log.Printf("lease-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterLease(e, h, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
