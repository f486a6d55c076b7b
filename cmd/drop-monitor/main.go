// Command drop-monitor runs the price evaluation loop outside the API
// server: every interval it evaluates all wishlists and dispatches the
// resulting drop events.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealwatch/internal/config"
	"dealwatch/internal/database"
	"dealwatch/internal/services/monitor"
	"dealwatch/internal/services/notify"
	"dealwatch/internal/services/pricing"
	"dealwatch/internal/services/wishlist"

	"github.com/joho/godotenv"
)

var (
	interval = flag.Duration("interval", 30*time.Minute, "time between monitoring cycles")
	once     = flag.Bool("once", false, "run a single cycle and exit")
	logFile  = flag.String("log", "", "log file path (defaults to stdout)")
	dbURL    = flag.String("db", "", "database connection string (overrides DATABASE_URL)")
)

type worker struct {
	store      *wishlist.Store
	monitor    *monitor.Monitor
	dispatcher *notify.Dispatcher
	logger     *log.Logger

	cycles   int
	failures int
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var logWriter *os.File
	var err error
	if *logFile != "" {
		logWriter, err = os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("cannot open log file: %v", err)
		}
		defer logWriter.Close()
	} else {
		logWriter = os.Stdout
	}
	logger := log.New(logWriter, "[DropMonitor] ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()
	databaseURL := cfg.DatabaseURL
	if *dbURL != "" {
		databaseURL = *dbURL
	}

	db, err := database.Initialize(databaseURL)
	if err != nil {
		logger.Fatalf("database initialization failed: %v", err)
	}

	store := wishlist.NewStore(db)
	source := pricing.NewClient(cfg.PriceAPIBase, cfg.PriceAPIKey)
	gateway := notify.NewSMSGateway(cfg.SMSAPIBase, cfg.SMSAPIKey, cfg.SMSSender)

	w := &worker{
		store:      store,
		monitor:    monitor.New(db, store, source),
		dispatcher: notify.NewDispatcher(db, store, gateway, notify.NewUserDirectory(db)),
		logger:     logger,
	}

	logger.Printf("drop monitor started (interval=%v, once=%v)", *interval, *once)

	if *once {
		w.runCycle()
		w.printStatus()
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	// First cycle runs immediately
	w.runCycle()
	w.printStatus()

	for {
		select {
		case <-sigChan:
			logger.Printf("shutdown signal received, stopping")
			return
		case <-ticker.C:
			w.runCycle()
			w.printStatus()
		}
	}
}

// runCycle evaluates every wishlist once and dispatches the emitted events.
// A failure for one user never aborts the cycle for the rest.
func (w *worker) runCycle() {
	w.cycles++

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	userIDs, err := w.store.UserIDs(ctx)
	if err != nil {
		w.logger.Printf("cycle failed: %v", err)
		w.failures++
		return
	}

	var emitted, sent int
	for _, userID := range userIDs {
		events, err := w.monitor.Evaluate(ctx, userID)
		if err != nil {
			w.logger.Printf("evaluation failed for user %d: %v", userID, err)
			w.failures++
			continue
		}
		emitted += len(events)

		for _, ev := range events {
			rec, err := w.dispatcher.Dispatch(ctx, ev)
			if err != nil {
				w.logger.Printf("dispatch failed for item %d: %v", ev.ItemID, err)
				continue
			}
			sent++
			w.logger.Printf("notified user %d: %s at %.2f via %s", ev.UserID, ev.ProductID, ev.NewPrice, rec.Channel)
		}
	}

	w.logger.Printf("cycle complete: %d users, %d events, %d sent", len(userIDs), emitted, sent)
}

func (w *worker) printStatus() {
	w.logger.Printf("status: cycles=%d failures=%d next in %v", w.cycles, w.failures, *interval)
}
