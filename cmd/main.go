package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/complianceops/escalation-engine/pkg/api"
	"github.com/complianceops/escalation-engine/pkg/audit"
	"github.com/complianceops/escalation-engine/pkg/config"
	"github.com/complianceops/escalation-engine/pkg/engine"
	"github.com/complianceops/escalation-engine/pkg/mail"
	"github.com/complianceops/escalation-engine/pkg/notify"
	"github.com/complianceops/escalation-engine/pkg/scheduler"
	"github.com/complianceops/escalation-engine/pkg/store"
	"github.com/complianceops/escalation-engine/pkg/version"
)

func main() {
	debug := true
	flag.BoolVar(&debug, "debug", false, "enable debug level logging")
	flag.Parse()

	zl := setupLogger(debug)
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting escalation engine")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config for escalation engine: %v", err)
	}

	if debug {
		log.Infof("%#v", cfg)
	}

	loc := time.UTC
	if cfg.Scheduler.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Scheduler.Timezone)
		if err != nil {
			log.Fatalf("Invalid scheduler timezone %q: %v", cfg.Scheduler.Timezone, err)
		}
	}

	stores, trail, closeStores, err := buildStores(cfg)
	if err != nil {
		log.Fatalf("Error opening storage: %v", err)
	}
	defer closeStores()

	auditService := audit.NewService(cfg.Audit, zl)
	defer func() {
		if err := auditService.Close(); err != nil {
			log.Errorw("Error closing audit service", "error", err)
		}
	}()

	var mailQueue *mail.Queue
	senders := []notify.ChannelSender{}
	if cfg.Mail.Enabled {
		mailQueue = mail.NewQueue(mail.NewSender(cfg), log, cfg.Mail.RetryCount, cfg.Mail.RetryBackoffMs, cfg.Mail.QueueSize)
		mailQueue.Start()
		senders = append(senders, notify.NewEmailChannel(mailQueue, cfg.Frontend.BaseURL, cfg.Frontend.BrandingName))
	}
	if cfg.Notify.SlackWebhookURL != "" {
		senders = append(senders, notify.NewSlackChannel(cfg.Notify.SlackWebhookURL))
	}
	if cfg.Notify.InAppWebhookURL != "" {
		senders = append(senders, notify.NewInAppChannel(cfg.Notify.InAppWebhookURL))
	}
	if cfg.Notify.CalendarWebhookURL != "" {
		senders = append(senders, notify.NewCalendarChannel(cfg.Notify.CalendarWebhookURL))
	}
	notifier := notify.NewDispatcher(log, senders...)

	eng := engine.New(engine.Config{
		Logger:      log,
		Chains:      stores.chains,
		Instances:   stores.instances,
		Events:      stores.events,
		Trail:       trail,
		Exporter:    auditService,
		Notifier:    notifier,
		Location:    loc,
		Parallelism: cfg.Scheduler.Parallelism,
	})

	sched, err := scheduler.New(log, eng, cfg.Scheduler.CronSpec, loc)
	if err != nil {
		log.Fatalf("Error creating evaluation scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Error starting evaluation scheduler: %v", err)
	}

	server := api.NewServer(zl, cfg, debug)
	err = server.RegisterAll([]api.APIController{
		engine.NewChainAPIController(log, eng, stores.chains),
		engine.NewInstanceAPIController(log, eng, stores.instances),
		engine.NewEventAPIController(log, eng, stores.events, stores.chains),
		engine.NewAuditAPIController(log, eng),
		engine.NewAssigneeAPIController(log, stores.assignees),
	})
	if err != nil {
		log.Fatalf("Error registering escalation controllers: %v", err)
	}

	go handleShutdown(log, sched, mailQueue, notifier)

	server.Listen()
}

type storeSet struct {
	chains    store.ChainStore
	instances store.InstanceStore
	events    store.EventStore
	assignees store.AssigneeDirectory
}

func buildStores(cfg config.Config) (storeSet, audit.Trail, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return storeSet{}, nil, func() {}, err
		}
		return storeSet{
			chains:    store.NewSQLiteChainStore(db),
			instances: store.NewSQLiteInstanceStore(db),
			events:    store.NewSQLiteEventStore(db),
			assignees: store.NewSQLiteAssigneeDirectory(db),
		}, store.NewSQLiteTrail(db), func() { _ = db.Close() }, nil
	default:
		return storeSet{
			chains:    store.NewMemoryChainStore(),
			instances: store.NewMemoryInstanceStore(),
			events:    store.NewMemoryEventStore(),
			assignees: store.NewMemoryAssigneeDirectory(),
		}, audit.NewMemoryTrail(), func() {}, nil
	}
}

func handleShutdown(log *zap.SugaredLogger, sched *scheduler.Scheduler, mailQueue *mail.Queue, notifier *notify.Dispatcher) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Infow("Shutting down", "signal", s.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		log.Errorw("Scheduler did not stop cleanly", "error", err)
	}
	notifier.Wait()
	if mailQueue != nil {
		if err := mailQueue.Stop(ctx); err != nil {
			log.Errorw("Mail queue did not drain", "error", err)
		}
	}
	os.Exit(0)
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
