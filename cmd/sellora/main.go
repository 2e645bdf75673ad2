package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sellora/sellora/internal/pkg/auditexport"
	"github.com/sellora/sellora/internal/pkg/billing"
	"github.com/sellora/sellora/internal/pkg/cache"
	"github.com/sellora/sellora/internal/pkg/database"
	"github.com/sellora/sellora/internal/pkg/env"
	"github.com/sellora/sellora/internal/pkg/notification"
	"github.com/sellora/sellora/internal/pkg/router"
	"github.com/sellora/sellora/internal/pkg/sweep"
	"github.com/sellora/sellora/internal/pkg/usage"
)

func main() {
	app, manager := NewApplication()

	// shut the sweep workers down cleanly on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *sweep.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		AppName: "sellora",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// BACKGROUND SWEEPS
	db := database.GetDB()
	sink := notification.NewSink(db)
	meter := usage.NewMeterFromDB(db, sink)
	grace := billing.NewGracePeriodController(billing.NewRepository(db), billing.NewProviderClientFromEnv(), sink)

	var exporter *auditexport.Exporter
	if cfg, err := auditexport.LoadConfig(); err != nil {
		log.Printf("audit export disabled: %v", err)
	} else if exporter, err = auditexport.NewExporter(db, cfg); err != nil {
		log.Printf("audit export disabled: %v", err)
		exporter = nil
	}

	manager := sweep.GetManager(db, meter, grace, exporter)
	manager.Start()

	return app, manager
}
