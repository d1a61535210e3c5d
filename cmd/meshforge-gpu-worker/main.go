// meshforge-gpu-worker — удалённая GPU-функция генерации сцен.
//
// Worker:
//   - Получает задания из очереди worldgen.jobs
//   - Запускает генератор в окружении worldgen.env
//   - Выгружает артефакт в MinIO (или в worldgen.output_dir)
//   - Отвечает в reply-очередь клиента
//
// HTTP: /healthz, /metrics на metrics.addr.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/meshforge/internal/api"
	"github.com/shaiso/meshforge/internal/cli"
	"github.com/shaiso/meshforge/internal/gpuworker"
	"github.com/shaiso/meshforge/internal/mq"
)

func main() {
	app, err := cli.LoadApp(cli.AppOptions{})
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := app.Logger
	cfg := app.Config
	logger.Info("starting meshforge-gpu-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище артефактов
	var uploader gpuworker.Uploader = gpuworker.LocalUploader{Dir: cfg.Paths.Resolve(cfg.Worldgen.OutputDir)}
	if cfg.ObjectStore.Enabled {
		store, err := app.NewObjectStore(ctx, cfg.ObjectStore.Bucket)
		if err != nil {
			logger.Error("failed to open object store", "error", err)
			os.Exit(1)
		}
		uploader = store
		logger.Info("object store connected", "bucket", store.Bucket())
	}

	runner, err := app.Runner()
	if err != nil {
		logger.Error("failed to create runner", "error", err)
		os.Exit(1)
	}

	processor, err := gpuworker.NewProcessor(gpuworker.ProcessorConfig{
		Runner:    runner,
		Uploader:  uploader,
		Env:       cfg.Worldgen.Env,
		Generator: cfg.Worldgen.Generator,
		Dir:       cfg.Paths.Resolve(cfg.Worldgen.Dir),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("invalid worldgen config", "error", err)
		os.Exit(1)
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	metrics := app.Metrics.WithRuntimeCollectors()

	w := gpuworker.New(gpuworker.Config{
		Conn:      mqConn,
		Replier:   mq.NewPublisher(mqConn, logger),
		Processor: processor,
		Observer:  metrics,
		Prefetch:  cfg.RabbitMQ.Prefetch,
		Logger:    logger,
	})
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP: /healthz + /metrics
	h := api.NewHandler(api.Config{
		Health: func() error {
			if !mqConn.IsConnected() {
				return errors.New("rabbitmq disconnected")
			}
			return nil
		},
		Metrics: metrics.Handler(),
		Logger:  logger,
	})
	if err := api.ListenAndServe(ctx, cfg.Metrics.Addr, h.Routes(), logger); err != nil {
		logger.Error("http server error", "error", err)
	}

	w.Stop()
	logger.Info("meshforge-gpu-worker stopped")
}
