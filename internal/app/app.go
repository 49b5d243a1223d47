package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/domicile785-droid/Cycle-World/internal/blobstore"
	"github.com/domicile785-droid/Cycle-World/internal/catalog"
	"github.com/domicile785-droid/Cycle-World/internal/config"
	"github.com/domicile785-droid/Cycle-World/internal/document"
	"github.com/domicile785-droid/Cycle-World/internal/httpapi"
	"github.com/domicile785-droid/Cycle-World/internal/messaging"
	"github.com/domicile785-droid/Cycle-World/internal/order"
	"github.com/domicile785-droid/Cycle-World/internal/payment"
	"github.com/domicile785-droid/Cycle-World/internal/storage"
	"github.com/domicile785-droid/Cycle-World/internal/verification"
	"github.com/domicile785-droid/Cycle-World/internal/websocket"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	wsHub     *websocket.Hub
	publisher messaging.Publisher
	consumer  *messaging.Consumer
	outbox    *messaging.OutboxDispatcher
	docWorker *document.Worker
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	blobs, err := blobstore.New(ctx, blobstore.Options{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		UseSSL:        cfg.MinioUseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
		Buckets:       []string{cfg.ProofBucket, cfg.ImageBucket, cfg.DocumentBucket},
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	orderSvc := order.NewService(store.Pool())
	catalogSvc := catalog.NewService(store.Pool())
	paymentStore := payment.NewStore(store.Pool())
	docQueue := document.NewQueue(store.Pool())

	wsHub := websocket.NewHub()

	workflow := verification.NewWorkflow(orderSvc, paymentStore, catalogSvc, docQueue, wsHub, logger)

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.DocsExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.DocsExchange, cfg.DocsQueue, logger)
	if err != nil {
		store.Close()
		publisher.Close()
		return nil, err
	}

	docWorker := document.NewWorker(store.Pool(), orderSvc, blobs, cfg.DocumentBucket, logger)

	api := httpapi.NewServer(httpapi.Deps{
		Orders:      orderSvc,
		Catalog:     catalogSvc,
		Payments:    paymentStore,
		Workflow:    workflow,
		Blobs:       blobs,
		ProofBucket: cfg.ProofBucket,
		ImageBucket: cfg.ImageBucket,
		AdminToken:  cfg.AdminToken,
		Logger:      logger,
	})
	wsHandler := websocket.NewHandler(wsHub, orderSvc)
	api.HandleFunc("GET /orders/{orderID}/ws", wsHandler.ServeWS)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, "document_outbox", cfg.OutboxInterval, cfg.OutboxBatchSize, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		wsHub:     wsHub,
		publisher: publisher,
		consumer:  consumer,
		outbox:    outbox,
		docWorker: docWorker,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	a.outbox.Start(ctx)

	go a.wsHub.Run(ctx)

	go func() {
		errCh <- a.consumer.Start(ctx, a.docWorker.HandleDelivery)
	}()

	go func() {
		a.logger.Info("storefront http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.consumer.Close()
	a.publisher.Close()
	a.store.Close()
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
