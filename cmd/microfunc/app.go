package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/microfunc/microfunc/config/logger"
	postgres "github.com/microfunc/microfunc/config/storage/postgresql"
	redis "github.com/microfunc/microfunc/config/storage/redis"
	config "github.com/microfunc/microfunc/config/utils"
	"github.com/microfunc/microfunc/internal/adapter/api/rest"
	"github.com/microfunc/microfunc/internal/adapter/monitoring/prometheus"
	"github.com/microfunc/microfunc/internal/adapter/notify"
	amqpnotify "github.com/microfunc/microfunc/internal/adapter/notify/amqp"
	"github.com/microfunc/microfunc/internal/adapter/notify/webhook"
	pgrepo "github.com/microfunc/microfunc/internal/adapter/storage/postgres"
	redisrepo "github.com/microfunc/microfunc/internal/adapter/storage/redis"
	"github.com/microfunc/microfunc/internal/core/domain"
	"github.com/microfunc/microfunc/internal/core/port"
	"github.com/microfunc/microfunc/internal/core/service"
	"github.com/microfunc/microfunc/internal/manifest"
)

// app wires configuration, storage, notifiers and services for one CLI
// invocation. The storage handle is opened once and shared by every
// operation.
type app struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	db       *postgres.DB
	manifest *manifest.Manifest
	apis     *rest.Registry
	engine   port.LifecycleManager
	executor port.TaskExecutor
	sched    port.TaskScheduler
	metrics  *prometheus.Metrics
	queue    *amqpnotify.Publisher
}

// appOptions selects the optional collaborators a command needs.
type appOptions struct {
	scheduler bool // redis fire-marker + scan loop + metrics
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	appConfig := config.New()
	baseLogger := logger.Build(appConfig.Logger)

	zap.L().Info("Starting the application",
		zap.String("app", appConfig.App.Name),
		zap.String("env", appConfig.App.Env),
		zap.String("owner", appConfig.App.Owner))

	if !appConfig.TaskManager.Enabled {
		zap.L().Info("Task manager is disabled")
	}

	m, err := manifest.Load(appConfig.App.Manifest)
	if err != nil {
		return nil, err
	}

	// Init database service
	dbService, err := postgres.New(ctx, appConfig.DB, baseLogger.Named("DB"))
	if err != nil {
		return nil, fmt.Errorf("initialize database connection: %w", err)
	}
	zap.L().Info("Successfully connected to the database", zap.String("db", appConfig.DB.Connection))

	// Migrate database
	if err := dbService.Migrate(); err != nil {
		dbService.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a := &app{
		cfg:      appConfig,
		log:      baseLogger,
		db:       dbService,
		manifest: m,
		apis:     rest.NewRegistry(m.Communication.APIs, baseLogger.Named("API")),
	}

	// Notification sinks: webhooks always, AMQP when configured.
	sinks := []port.Notifier{
		webhook.NewNotifier(m.Communication.Webhooks, baseLogger.Named("Webhook")),
	}
	if appConfig.Queue.Enabled {
		pub, err := amqpnotify.NewPublisher(appConfig.Queue.URL, appConfig.Queue.Exchange, baseLogger.Named("Queue"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize queue connection: %w", err)
		}
		a.queue = pub
		sinks = append(sinks, pub)
	}

	var monitor port.Monitor = port.NopMonitor{}
	if opts.scheduler {
		a.metrics = prometheus.NewMetrics()
		monitor = a.metrics
	}

	taskRepo := pgrepo.NewTaskRepository(dbService, baseLogger.Named("TaskRepo"))
	engine := service.NewLifecycleService(
		taskRepo,
		notify.NewFanout(sinks...),
		monitor,
		appConfig.TaskManager.NotifyAssignees,
		baseLogger.Named("Lifecycle"),
	)
	executor := service.NewExecutorService(
		taskRepo,
		engine,
		monitor,
		appConfig.TaskManager.ExecutionTimeout,
		baseLogger.Named("Executor"),
	)
	a.engine = engine
	a.executor = executor

	if opts.scheduler {
		var marker port.FireMarker
		if appConfig.Redis.Addr != "" {
			cache, err := redis.New(ctx, appConfig.Redis)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("initialize cache connection: %w", err)
			}
			zap.L().Info("Successfully connected to the cache server", zap.String("address", appConfig.Redis.Addr))
			marker = redisrepo.NewFireMarker(cache.Client, baseLogger.Named("FireMarker"))
		}

		a.sched = service.NewSchedulerService(
			taskRepo,
			executor,
			marker,
			monitor,
			appConfig.TaskManager.ScanInterval,
			baseLogger.Named("Scheduler"),
		)
	}

	return a, nil
}

// requireTaskManager guards task commands behind the config gate.
func (a *app) requireTaskManager() error {
	if !a.cfg.TaskManager.Enabled {
		return fmt.Errorf("task manager is disabled (task_manager.enabled)")
	}
	return nil
}

// manifestTasks converts every declared definition into domain tasks,
// manual first, matching the original sync order.
func (a *app) manifestTasks() ([]*domain.Task, error) {
	var tasks []*domain.Task
	for _, def := range a.manifest.Tasks.Manual {
		task, err := def.ToTask(domain.TaskTypeManual)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	for _, def := range a.manifest.Tasks.Automated {
		task, err := def.ToTask(domain.TaskTypeAutomated)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (a *app) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
