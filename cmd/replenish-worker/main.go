package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/compraflow/compraflow-backend/internal/replenish/events"
	"github.com/compraflow/compraflow-backend/internal/replenish/handler"
	"github.com/compraflow/compraflow-backend/internal/replenish/repository"
	"github.com/compraflow/compraflow-backend/internal/replenish/service"
	"github.com/compraflow/compraflow-backend/pkg/config"
	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/httputil"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/messaging"
)

func main() {
	app := &cli.App{
		Name:  "replenish-worker",
		Usage: "automatic purchase order replenishment worker",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the recurring scheduler and the ops HTTP server",
				Action: serve,
			},
			{
				Name:  "run",
				Usage: "execute one replenishment run and print the result as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "org",
						Usage: "organization ID (sweeps all active organizations when omitted)",
					},
					&cli.StringFlag{
						Name:  "job",
						Usage: "job identifier for audit correlation (generated when omitted)",
					},
				},
				Action: runOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadWithValidation("replenish-worker")
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New("replenish-worker", cfg.Server.Environment)
	log.Info().Msg("starting Replenish Worker")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewOrderEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	engine := buildEngine(cfg, db, publisher, log)
	runLog := service.NewRunLog(0)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *service.Scheduler
	if cfg.Replenish.Enabled {
		scheduler = service.NewScheduler(engine, runLog, redisClient, cfg.Replenish.ScanInterval, log)
		scheduler.Start(ctx)
	} else {
		log.Info().Msg("recurring scheduler disabled")
	}

	replenishHandler := handler.New(engine, runLog, repository.NewAuditRepository(db), log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "replenish-worker",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	replenishHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

// runOnce runs the engine a single time without the scheduler or the broker.
// Events are not published in one-shot mode.
func runOnce(c *cli.Context) error {
	cfg, err := config.LoadWithValidation("replenish-worker")
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New("replenish-worker", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	engine := buildEngine(cfg, db, nil, log)

	jobID := c.String("job")
	if jobID == "" {
		jobID = uuid.New().String()
	}

	ctx := context.Background()

	var out interface{}
	if orgID := c.String("org"); orgID != "" {
		result, runErr := engine.RunForOrganization(ctx, orgID, jobID)
		if runErr != nil {
			log.Error().Err(runErr).Str("org_id", orgID).Msg("run finished with errors")
		}
		out = result
	} else {
		results, runErr := engine.RunAll(ctx, jobID)
		if runErr != nil {
			return fmt.Errorf("sweep failed: %w", runErr)
		}
		out = results
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func buildEngine(cfg *config.Config, db *database.DB, publisher service.OrderEvents, log *logger.Logger) *service.Engine {
	deps := service.EngineDeps{
		Tx:        db,
		Items:     repository.NewItemRepository(db),
		Suppliers: repository.NewSupplierRepository(db),
		Orders:    repository.NewOrderRepository(db),
		Kanban:    repository.NewKanbanRepository(db),
		Audit:     repository.NewAuditRepository(db),
		Orgs:      repository.NewOrganizationRepository(db),
		Events:    publisher,
	}
	return service.NewEngine(cfg.Replenish, deps, log)
}
