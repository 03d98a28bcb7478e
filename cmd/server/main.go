// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/controller"
	"github.com/unclebandit/outreach-engine/internal/db"
	"github.com/unclebandit/outreach-engine/internal/handler"
	"github.com/unclebandit/outreach-engine/internal/logging"
	"github.com/unclebandit/outreach-engine/internal/mailer"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/repository"
	"github.com/unclebandit/outreach-engine/internal/rewrite"
	"github.com/unclebandit/outreach-engine/internal/service"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DSN(), logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}

	events, closeEvents, err := openEvents(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	claims, err := openClaims(ctx, cfg, logger)
	if err != nil {
		return err
	}

	prospectRepo := &repository.ProspectRepository{DB: conn, HistoryRetention: cfg.Outreach.HistoryRetention}
	catalogRepo := &repository.CatalogRepository{DB: conn}
	unsubscribeRepo := &repository.UnsubscribeRepository{DB: conn}

	mail, err := mailer.New(mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		User:        cfg.SMTP.User,
		Pass:        cfg.SMTP.Pass,
		From:        cfg.SMTP.From,
		AppDomain:   cfg.AppDomain,
		TrackingURL: cfg.TrackingURL,
	}, unsubscribeRepo, logger)
	if err != nil {
		return err
	}

	rewriter, err := rewrite.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	personalizer := &service.Personalizer{Rewriter: rewriter, Logger: logger}
	if !personalizer.Enabled() {
		logger.Info("ai personalization disabled")
	}

	catalogs := &service.CatalogService{
		Repo:              catalogRepo,
		Logger:            logger,
		DefaultCampaignID: cfg.Outreach.DefaultCampaignID,
	}
	sequence := &service.SequenceService{
		ProspectRepo: prospectRepo,
		Catalogs:     catalogs,
		Events:       events,
		Logger:       logger,
		Now:          time.Now,
	}
	outreach := &controller.OutreachController{
		Queue: &service.QueueService{
			ProspectRepo: prospectRepo,
			Catalogs:     catalogs,
			Events:       events,
			Logger:       logger,
			ProgramName:  cfg.Outreach.ProgramName,
			Now:          time.Now,

			FallbackWindow: cfg.Outreach.FallbackEventWindow,
		},
		Sequence: sequence,
		Pipeline: &service.SendPipeline{
			ProspectRepo: prospectRepo,
			Catalogs:     catalogs,
			Sequence:     sequence,
			Personalizer: personalizer,
			Claims:       claims,
			Dispatchers: map[model.Channel]service.Dispatcher{
				model.ChannelEmail: mail,
				model.ChannelVideo: mail,
			},
			Manual:      &service.ManualDispatcher{Logger: logger},
			Events:      events,
			Logger:      logger,
			ProgramName: cfg.Outreach.ProgramName,
			Now:         time.Now,
		},
		Personalizer: personalizer,
		Logger:       logger,
	}
	catalogHandler := &handler.CatalogHandler{Catalogs: catalogs, Logger: logger}
	trackingHandler := &handler.TrackingHandler{
		Tracking: &service.TrackingService{
			Opens:  prospectRepo,
			Events: events,
			Logger: logger,
			Now:    time.Now,
			Window: cfg.Outreach.OpenDedupWindow,
		},
		Logger: logger,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           controller.NewRouter(outreach, catalogHandler, trackingHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openEvents connects to RabbitMQ when configured and falls back to the
// in-process queue otherwise.
func openEvents(cfg *config.Config, logger *zap.Logger) (queue.Queue, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL not set, using in-memory event queue")
		return queue.NewInMemoryQueue(logger), func() {}, nil
	}
	q, err := queue.DialAMQP(cfg.AMQPURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return q, func() { q.Close() }, nil
}

func openClaims(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.SendClaims, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, send claims are process-local")
		return repository.NewInMemorySendClaims(cfg.Redis.ClaimTTL), nil
	}
	client, err := repository.ConnectRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return repository.NewRedisSendClaims(client, cfg.Redis.ClaimTTL), nil
}
