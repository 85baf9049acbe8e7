package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/chatstack/chatservice/internal/api"
	"github.com/chatstack/chatservice/internal/chat"
	"github.com/chatstack/chatservice/internal/config"
	"github.com/chatstack/chatservice/internal/database"
	"github.com/chatstack/chatservice/internal/presence"
	"github.com/chatstack/chatservice/internal/registry"
	"github.com/chatstack/chatservice/internal/server"
	"github.com/chatstack/chatservice/internal/stats"
)

var runMigrations = flag.Bool("migrate", false, "apply database migrations on startup")

func main() {
	flag.Parse()

	logger := log.New(os.Stderr, "[chatservice] ", log.LstdFlags)

	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config: ", err)
	}

	repo, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if *runMigrations {
		if err := repo.Migrate(); err != nil {
			logger.Fatal("migrate: ", err)
		}
		logger.Println("migrations applied")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewUpdater(mux)
	for _, name := range []string{
		stats.ActiveConnections,
		stats.OnlineUsers,
		stats.MessagesBroadcast,
		stats.DeliveryFailures,
	} {
		statsUpdater.RegisterMetric(name)
	}
	statsUpdater.Run()
	defer statsUpdater.Stop()

	// registries are constructed once here and passed by reference;
	// nothing in the process holds package-level state
	connTable := server.NewConnTable()
	roomRegistry := registry.NewRoomRegistry(logger, connTable, statsUpdater, cfg.SendTimeout)
	tracker := presence.NewTracker()
	coordinator := chat.NewCoordinator(logger, repo, roomRegistry)
	sessions := server.NewSessionServer(logger, connTable, roomRegistry, tracker, coordinator, statsUpdater)

	app := api.NewApp(mux, logger, repo, coordinator, sessions, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("closing client sessions...")
	sessions.Shutdown()

	logger.Println("shutdown complete")
}
