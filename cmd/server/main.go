package main // Entry point package

import (
	"context"
	"log" // Logging

	"github.com/joho/godotenv" // Load .env (dev/local)
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
	"github.com/iliyamo/cinema-seat-reservation/internal/config" // Config loader
	"github.com/iliyamo/cinema-seat-reservation/internal/database"
	"github.com/iliyamo/cinema-seat-reservation/internal/eventbus"
	"github.com/iliyamo/cinema-seat-reservation/internal/handler"
	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/lock"
	"github.com/iliyamo/cinema-seat-reservation/internal/middleware"
	"github.com/iliyamo/cinema-seat-reservation/internal/payment"
	"github.com/iliyamo/cinema-seat-reservation/internal/purchase"
	"github.com/iliyamo/cinema-seat-reservation/internal/reaper"
	"github.com/iliyamo/cinema-seat-reservation/internal/realtime"
	"github.com/iliyamo/cinema-seat-reservation/internal/repository"
	"github.com/iliyamo/cinema-seat-reservation/internal/router" // Router setup
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

func main() {
	// Load .env if present (ignore error in dev/local)
	if err := godotenv.Load(); err != nil { // Try to load .env
		log.Println("info: .env not found; using defaults/env") // Non-fatal notice
	}

	cfg := config.Load() // Load environment config
	domainCfg := config.LoadDomainConfig()
	mqCfg := config.LoadMQConfig()
	cacheCfg := config.LoadCacheConfig()
	rateLimitCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: could not connect; the seat inventory service requires it")
	}
	cacheStore := cache.NewRedisStore(rdb)
	durableStore := store.NewMySQLStore(db)

	lockMgr := lock.NewManager(cacheStore, domainCfg.LockTTL, domainCfg.LockWaitMax, domainCfg.LockRetryBase)
	payCap := payment.NewSandbox()

	var rawBus eventbus.Bus
	if mqCfg.URL == "" {
		log.Println("eventbus: RABBITMQ_URL not set; events are discarded")
		rawBus = eventbus.NewNoop()
	} else {
		b, err := eventbus.NewRabbitMQBus(mqCfg)
		if err != nil {
			log.Printf("eventbus: dial failed, falling back to noop: %v", err)
			rawBus = eventbus.NewNoop()
		} else {
			rawBus = b
		}
	}
	defer rawBus.Close()

	hub := realtime.New(domainCfg.SessionBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	bus := eventbus.Fanout(rawBus, hub)
	invSvc := inventory.NewService(durableStore, cacheStore, lockMgr, domainCfg, bus)

	seatRepo := repository.NewSeatRepo(db)
	pricer := purchase.NewRepoPricer(seatRepo)
	coordinator := purchase.NewCoordinator(durableStore, invSvc, payCap, bus, pricer, domainCfg)

	go reaper.New(durableStore, invSvc, bus, domainCfg).Run(ctx)

	if mqCfg.URL != "" {
		metricsConsumer := eventbus.NewMetricsConsumer(mqCfg, cacheStore, prometheus.DefaultRegisterer)
		go func() {
			if err := metricsConsumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("eventbus-consumer: stopped: %v", err)
			}
		}()
	}

	cinemaRepo := repository.NewCinemaRepo(db)
	hallRepo := repository.NewHallRepo(db)
	showRepo := repository.NewShowRepo(db)
	showSeatRepo := repository.NewShowSeatRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	ownerHandler := handler.NewOwnerHandler(cinemaRepo, hallRepo, seatRepo, showRepo, showSeatRepo)
	ownerReservationHandler := handler.NewOwnerReservationHandler(reservationRepo, showRepo, hallRepo, showSeatRepo)
	transactionHandler := handler.NewTransactionHandler(durableStore, invSvc, coordinator)
	realtimeHandler := handler.NewRealtimeHandler(hub, invSvc, durableStore, cfg.JWTSecret)

	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	router.RegisterRoutes(e)
	router.RegisterOwner(e, ownerHandler, cfg.JWTSecret)
	router.RegisterOwnerReservations(e, ownerReservationHandler, cfg.JWTSecret)
	router.RegisterCustomer(e, transactionHandler, cfg.JWTSecret)
	router.RegisterRealtime(e, realtimeHandler)

	authGroup := e.Group("/v1/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/refresh-access", authHandler.RefreshAccess)
	authGroup.POST("/logout", authHandler.Logout)
	e.GET("/v1/me", authHandler.Me, middleware.JWTAuth(cfg.JWTSecret))

	if cacheCfg.Enabled {
		e.Use(middleware.NewRedisCache(cacheCfg, rdb))
	}
	if rateLimitCfg.Enabled {
		e.Use(middleware.NewTokenBucket(rateLimitCfg, rdb))
	}

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
