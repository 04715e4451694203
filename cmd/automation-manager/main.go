package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/analytics"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/dispatcher"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/orchestrators"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/templates"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/automation/workflow"
	awsclients "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/aws"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/camunda"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/config"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/database"
	commonhttp "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/http"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/logger"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/observability"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/zoho"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/crm"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/delivery"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/hooks"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/intake"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/jobs"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/runner"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/store/postgres"
	redisstore "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/store/redis"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automationjob"

	abl "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automation/ab-test-launch"
	bt "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automation/behavioral-trigger"
	da "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automation/donation-acknowledgment"
	de "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automation/drip-enrollment"
	ns "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automation/newsletter-send"
	rc "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/automation/reengagement-campaign"
	eci "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/events/event-check-in"
	er "github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/workers/events/event-registration"
)

const dedupeTTL = 7 * 24 * time.Hour

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting automation manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.JaegerEndpoint
	}
	tracing, err := observability.NewTracing(cfg.App.Name, tracingEndpoint)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage

	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := postgres.EnsureSchema(ctx, pg); err != nil {
		zapLog.Fatal("postgres schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]intake.ReadinessCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	var (
		tracker workflow.AnalyticsSink = workflow.NoopAnalytics{}
		stats   intake.WorkflowStats
	)
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		sink := analytics.NewSink(esClient.Client, cfg.Database.Elasticsearch.Index)
		if err := sink.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("analytics index setup failed", zap.Error(err))
		}
		tracker, stats = sink, sink
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")
	}

	members := postgres.NewMemberStore(pg, time.Now)
	queue := postgres.NewTaskQueue(pg, time.Now)
	campaigns := postgres.NewCampaignStore(pg, time.Now)

	// Outbound integrations

	transport := newTransport(ctx, cfg, postgres.NewInbox(pg, time.Now), log, zapLog)
	hook := newHook(cfg, zeebe)

	var staff workflow.StaffTaskSink = workflow.NoopStaffTasks{}
	if cfg.Integrations.Zoho.Enabled {
		api := zoho.NewCRMClientWithBaseURL(cfg.Integrations.Zoho.APIKey, cfg.Integrations.Zoho.AuthToken, cfg.Integrations.Zoho.BaseURL)
		staff = crm.NewStaffTasks(api, members, log)
	}

	// Workflow core

	store, err := loadTemplates(cfg.Automation.TemplateRegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.Error(err))
	}

	deps := orchestrators.Deps{
		Members:      members,
		Transport:    transport,
		ExecutionLog: redisstore.NewExecutionLog(rdb),
		Analytics:    tracker,
		Hook:         hook,
		Campaigns:    campaigns,
		Templates:    store,
		Runtime: workflow.Runtime{
			Logger:      log,
			Observer:    obs,
			CallTimeout: cfg.Automation.CallTimeoutDuration(),
			Now:         time.Now,
		},
		Organization:          cfg.Automation.OrganizationName,
		NewsletterHour:        cfg.Automation.NewsletterSendHour,
		InactiveThresholdDays: cfg.Automation.InactiveThresholdDays,
		EventReminderHours:    cfg.Automation.EventReminders,
		ABAnalysisHours:       cfg.Automation.ABTest.AnalysisHours,
		ABDeploymentHours:     cfg.Automation.ABTest.DeploymentHours,
		StrictTriggerKeys:     cfg.Automation.StrictTriggerKeys,
	}
	d := dispatcher.New(deps, queue, log, dispatcher.WithNewsletterDefaults(newsletterDefaults(cfg.Automation.Newsletter)))
	in := intake.New(d, redisstore.NewDeduplicator(rdb, dedupeTTL), members, log)

	taskRunner := runner.New(runner.Config{
		BatchSize:   cfg.Automation.RunnerBatchSize,
		MaxAttempts: cfg.Automation.RunnerMaxAttempts,
	}, runner.Deps{
		Queue:        queue,
		Members:      members,
		Transport:    transport,
		StaffTasks:   staff,
		Hook:         hook,
		Campaigns:    campaigns,
		Templates:    store,
		Organization: cfg.Automation.OrganizationName,
		Logger:       log,
	})

	// Event sources

	if cfg.Messaging.RabbitMQ.Enabled {
		consumer, err := intake.NewConsumer(cfg.Messaging.RabbitMQ.URL, in, log)
		if err != nil {
			zapLog.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		defer consumer.Close()
		rmq := cfg.Messaging.RabbitMQ
		if err := consumer.Start(ctx, rmq.Exchange, rmq.Queue, rmq.RoutingKey); err != nil {
			zapLog.Fatal("rabbitmq consumer failed to start", zap.Error(err))
		}
		zapLog.Info("RabbitMQ consumer started", zap.String("queue", rmq.Queue))
	}

	scheduler := jobs.NewScheduler(log, 5*time.Minute)
	schedules := cfg.Automation.Schedules
	for _, j := range []struct {
		name string
		expr string
		job  jobs.Job
	}{
		{"task-runner", schedules.Runner, jobs.RunnerJob(taskRunner, log)},
		{"reengagement", schedules.Reengagement, jobs.TickJob(in, dispatcher.EventReengagementTick)},
		{"newsletter", schedules.Newsletter, jobs.TickJob(in, dispatcher.EventNewsletterTick)},
	} {
		if err := scheduler.Register(j.name, j.expr, j.job); err != nil {
			zapLog.Fatal("invalid schedule", zap.Error(err))
		}
	}
	scheduler.Start()

	var workers []*camunda.CamundaWorker
	if zeebe != nil {
		workers = startWorkers(cfg, zeebe, in, log, zapLog)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           intake.NewServer(in, checks, stats).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	for _, w := range workers {
		w.Stop()
	}

	zapLog.Info("Automation manager stopped gracefully")
}

func loadTemplates(path string) (*templates.Store, error) {
	if path == "" {
		return templates.Default()
	}
	return templates.New(path)
}

func newsletterDefaults(cfg config.NewsletterConfig) orchestrators.NewsletterRequest {
	rules := make([]models.SegmentationRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, models.SegmentationRule{
			Name:      r.Name,
			Condition: models.ConditionKind(r.Condition),
			Weight:    r.Weight,
		})
	}
	return orchestrators.NewsletterRequest{TemplateID: cfg.TemplateID, Rules: rules}
}

// newTransport routes email through SES and sms/push through SNS when they
// are enabled. Disabled channels fail delivery.
func newTransport(ctx context.Context, cfg *config.Config, inbox delivery.InboxWriter, log logger.Logger, zapLog *zap.Logger) *delivery.Router {
	aws := cfg.Integrations.AWS

	var email delivery.EmailSender
	if aws.SES.Enabled {
		client, err := awsclients.NewSESClient(ctx, aws.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		email = client
	}

	var publisher delivery.Publisher
	if aws.SNS.Enabled {
		client, err := awsclients.NewSNSClient(ctx, aws.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		publisher = client
	}

	return delivery.NewRouter(delivery.Config{
		FromEmail:   aws.SES.FromEmail,
		SMSSenderID: aws.SNS.DefaultSMSSenderID,
	}, email, publisher, inbox, log)
}

func newHook(cfg *config.Config, zeebe *camunda.Client) workflow.ExternalAutomationHook {
	var fanout hooks.Fanout
	if zeebe != nil {
		fanout = append(fanout, hooks.NewZeebeHook(zeebe, hooks.DefaultMessageTTL))
	}
	if wh := cfg.Integrations.Webhook; wh.Enabled {
		client := commonhttp.NewClient(config.GetDuration(wh.Timeout))
		fanout = append(fanout, hooks.NewWebhookHook(client, wh.URL, wh.Secret))
	}
	if len(fanout) == 0 {
		return workflow.NoopHook{}
	}
	return fanout
}

func startWorkers(cfg *config.Config, zeebe *camunda.Client, events automationjob.EventHandler, log logger.Logger, zapLog *zap.Logger) []*camunda.CamundaWorker {
	handlers := []struct {
		taskType string
		handle   func(worker.JobClient, entities.Job)
	}{
		{da.TaskType, da.NewHandler(da.LoadConfig(cfg), events, log).Handle},
		{bt.TaskType, bt.NewHandler(bt.LoadConfig(cfg), events, log).Handle},
		{de.TaskType, de.NewHandler(de.LoadConfig(cfg), events, log).Handle},
		{ns.TaskType, ns.NewHandler(ns.LoadConfig(cfg), events, log).Handle},
		{rc.TaskType, rc.NewHandler(rc.LoadConfig(cfg), events, log).Handle},
		{abl.TaskType, abl.NewHandler(abl.LoadConfig(cfg), events, log).Handle},
		{er.TaskType, er.NewHandler(er.LoadConfig(cfg), events, log).Handle},
		{eci.TaskType, eci.NewHandler(eci.LoadConfig(cfg), events, log).Handle},
	}

	var started []*camunda.CamundaWorker
	for _, h := range handlers {
		wcfg := config.GetWorkerConfig(cfg, h.taskType)
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", h.taskType))
			continue
		}
		handle := h.handle
		started = append(started, camunda.NewWorker(
			zeebe.GetClient(),
			h.taskType,
			wcfg.MaxJobsActive,
			config.GetDuration(wcfg.Timeout),
			camunda.HandlerFunc(func(client worker.JobClient, job entities.Job) error {
				handle(client, job)
				return nil
			}),
			zapLog,
		))
	}
	zapLog.Info("workers registered", zap.Int("count", len(started)))
	return started
}
