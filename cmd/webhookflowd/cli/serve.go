package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/compozy/webhookflow/engine/action"
	"github.com/compozy/webhookflow/engine/dedup"
	"github.com/compozy/webhookflow/engine/history"
	historyrouter "github.com/compozy/webhookflow/engine/history/router"
	"github.com/compozy/webhookflow/engine/infra/metrics"
	"github.com/compozy/webhookflow/engine/queue"
	"github.com/compozy/webhookflow/engine/retry"
	"github.com/compozy/webhookflow/engine/schedule"
	"github.com/compozy/webhookflow/engine/webhook"
	"github.com/compozy/webhookflow/engine/webhook/verify"
	"github.com/compozy/webhookflow/engine/workflow"
	"github.com/compozy/webhookflow/engine/workflow/executor"
	"github.com/compozy/webhookflow/pkg/config"
	"github.com/compozy/webhookflow/pkg/logger"
	"github.com/compozy/webhookflow/pkg/tplengine"
)

// newServeCommand builds "serve": starts the HTTP ingress, the queue
// worker, and the cron scheduler, and blocks until an interrupt signal.
func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server, queue worker, and scheduler",
		RunE:  runServe,
	}
	cmd.Flags().String("workflows-dir", "./workflows", "Directory of workflow definition files to load")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	mgr := managerFromContext(ctx)
	cfg := mgr.Get()
	cfg.Mode = resolveMode(cmd, mgr.Service, cfg.Mode)
	log := logger.FromContext(ctx)

	workflowsDir, err := cmd.Flags().GetString("workflows-dir")
	if err != nil {
		return err
	}
	defs, err := loadWorkflowDir(workflowsDir)
	if err != nil {
		return err
	}
	log.Info("serve: loaded workflow definitions", "count", len(defs), "dir", workflowsDir)

	app, err := newApplication(ctx, cfg, defs, log)
	if err != nil {
		return err
	}
	go app.queue.Run(ctx)
	app.scheduler.Start()
	defer app.scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}
	return runUntilSignal(ctx, srv, log)
}

// application bundles the long-lived pieces wired together for serve.
type application struct {
	router    *gin.Engine
	queue     *queue.Queue
	scheduler *schedule.Scheduler
}

func newApplication(
	ctx context.Context,
	cfg *config.Config,
	defs []*workflow.Definition,
	log logger.Logger,
) (*application, error) {
	verifier, err := verify.New(verify.Config{
		Strategy: cfg.Webhook.VerifyStrategy,
		Secret:   cfg.Webhook.Secret.Value(),
		Header:   cfg.Webhook.SignatureHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook verifier: %w", err)
	}

	metricsReg := metrics.NewRegistry()
	dedupCache := dedup.New(cfg.Dedup.Capacity, cfg.Dedup.TTL)
	q := queue.New(cfg.Queue.Capacity)
	q.SetMetrics(metricsReg)

	store, err := newHistoryStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	historyMgr := history.NewManager(cfg.History.CacheCapacity, store)

	registry := action.NewRegistry()
	registry.RegisterGitHubActions(cfg.GitHub.Token.Value())
	breakers := retry.NewBreakerRegistry()
	bus := executor.NewBus()
	tpl := tplengine.New(tplengine.Strict, "")
	engine := executor.New(registry, historyMgr, breakers, bus, tpl)
	engine.SetMetrics(metricsReg)

	scheduler := schedule.New(ctx)
	registerWorkflows(q, scheduler, engine, defs, log)

	ingress := webhook.New(verifier, dedupCache, q, cfg.Queue.MaxRetries, metricsReg)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	ingress.RegisterRoutes(router)
	historyrouter.New(historyMgr).RegisterRoutes(router)

	return &application{router: router, queue: q, scheduler: scheduler}, nil
}

// newHistoryStore resolves the execution history backend from Config's
// effective driver: postgres dials a pgxpool.Pool against cfg.Database's
// DSN, anything else keeps history in the process's memory. A pool that
// fails to connect falls back to memory with a loud warning rather than
// refusing to start, since history is best-effort (engine/history's
// package doc).
func newHistoryStore(ctx context.Context, cfg *config.Config, log logger.Logger) (history.Store, error) {
	driver := cfg.EffectiveHistoryDriver()
	if driver != "postgres" {
		return history.NewMemoryStore(), nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Warn("serve: failed to connect to postgres, using in-memory history store", "error", err)
		return history.NewMemoryStore(), nil
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Warn("serve: postgres ping failed, using in-memory history store", "error", err)
		return history.NewMemoryStore(), nil
	}
	return history.NewPostgresStore(pool), nil
}

// registerWorkflows wires each enabled definition into the queue (webhook
// triggers) or the scheduler (schedule triggers). Disabled definitions and
// other trigger types are skipped. Webhook-triggered definitions are
// grouped by Trigger.Event first, since the queue only holds one processor
// per event type: every definition sharing an event competes for the same
// delivery and is filtered at dispatch time by registerWebhookGroup instead
// of colliding on registration.
func registerWorkflows(
	q *queue.Queue,
	scheduler *schedule.Scheduler,
	engine *executor.Engine,
	defs []*workflow.Definition,
	log logger.Logger,
) {
	webhookGroups := make(map[string][]*workflow.Definition)
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		switch def.Trigger.Type {
		case workflow.TriggerWebhook:
			webhookGroups[def.Trigger.Event] = append(webhookGroups[def.Trigger.Event], def)
		case workflow.TriggerSchedule:
			if _, err := scheduler.Register(runnerFunc(engine.Execute), def); err != nil {
				log.Error("serve: failed to register scheduled workflow", "workflow", def.Name, "error", err)
			}
		}
	}
	for eventType, group := range webhookGroups {
		registerWebhookGroup(q, engine, eventType, group, log)
	}
}

// runnerFunc adapts Engine.Execute's method value to schedule.Runner.
type runnerFunc func(
	ctx context.Context,
	def *workflow.Definition,
	trigger executor.TriggerContext,
	executionID string,
) (workflow.ExecutionResult, error)

func (f runnerFunc) Execute(
	ctx context.Context,
	def *workflow.Definition,
	trigger executor.TriggerContext,
	executionID string,
) (workflow.ExecutionResult, error) {
	return f(ctx, def, trigger, executionID)
}

// registerWebhookGroup registers the single processor the queue allows for
// eventType, dispatching each delivery to every definition in group whose
// Trigger.Matches (repository glob plus FilterRule AND-set) accepts it.
// Definitions that don't match are silently skipped, not errors; a
// definition whose Matches call itself fails is logged and skipped so one
// bad filter expression can't block its siblings.
func registerWebhookGroup(
	q *queue.Queue,
	engine *executor.Engine,
	eventType string,
	group []*workflow.Definition,
	log logger.Logger,
) {
	q.RegisterProcessor(eventType, func(ctx context.Context, event queue.QueuedEvent) error {
		repository := gjson.GetBytes(event.RawPayload, "repository.full_name").String()
		repoPayload, _ := event.Payload["repository"].(map[string]any)
		var errs []error
		for _, def := range group {
			matched, err := def.Trigger.Matches(repository, event.Payload)
			if err != nil {
				log.Error("serve: trigger filter evaluation failed", "workflow", def.Name, "delivery_id", event.DeliveryID, "error", err)
				continue
			}
			if !matched {
				continue
			}
			trigger := executor.TriggerContext{
				Event:      event.Type,
				Timestamp:  event.EnqueuedAt.UTC().Format(time.RFC3339),
				Payload:    event.Payload,
				Repository: repoPayload,
			}
			if _, err := engine.Execute(ctx, def, trigger, ""); err != nil {
				log.Error("serve: workflow execution failed", "workflow", def.Name, "delivery_id", event.DeliveryID, "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// runUntilSignal starts srv and blocks until SIGINT/SIGTERM, then shuts it
// down gracefully within a bounded window.
func runUntilSignal(ctx context.Context, srv *http.Server, log logger.Logger) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("serve: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
		log.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return <-errCh
	}
}
