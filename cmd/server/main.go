package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/clock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/config"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/database"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/handler"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/lock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/logging"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/middleware"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/queue"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/repository"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/router"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/service"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("mysql connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Error("redis connection failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	clk := clock.NewSystem()
	locker := lock.NewBreakerLocker(lock.NewRedisLocker(rdb), log)
	counters := lock.NewRedisCounters(rdb)
	resRepo := repository.NewReservationRepo(db)
	ruleRepo := repository.NewPricingRuleRepo(db)
	publisher := queue.NewPublisher(cfg.AMQPURL, log)

	coord := service.NewCoordinator(resRepo, ruleRepo, locker, counters, publisher, clk, log, service.Config{
		HoldTTL:       cfg.HoldTTL,
		AuthExtension: cfg.AuthExtension,
		FeeCents:      cfg.FeeCents,
		Currency:      cfg.Currency,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.AMQPURL, coord, log)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("payment consumer stopped", "err", err)
		}
	}()

	sweeper := service.NewSweeper(resRepo, coord, clk, log, cfg.SweepInterval, cfg.SweepBatch)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Error("sweeper stopped", "err", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e,
		handler.NewReservationHandler(coord, log),
		handler.NewPricingRuleHandler(ruleRepo, clk, log),
		handler.NewHealthHandler(db, rdb),
		limiter,
	)

	go func() {
		log.Info("listening", "addr", ":"+cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
