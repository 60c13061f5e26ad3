package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/imazen/lightresize/internal/backend"
	"github.com/imazen/lightresize/internal/cleanup"
	"github.com/imazen/lightresize/internal/config"
	"github.com/imazen/lightresize/internal/database"
	"github.com/imazen/lightresize/internal/metrics"
	"github.com/imazen/lightresize/internal/models"
	"github.com/imazen/lightresize/internal/queue"
	"github.com/imazen/lightresize/internal/resize"
	"github.com/imazen/lightresize/internal/storage"
)

type Worker struct {
	id             string
	jobRepo        *database.JobRepository
	storage        *storage.Storage
	consumer       *queue.Consumer
	pipeline       *resize.Pipeline
	metrics        *metrics.ResizeMetrics
	queueMetrics   *metrics.QueueMetrics
	retentionHours int
	logger         *slog.Logger
}

func main() {
	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Generate worker ID
	workerID := fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	logger = logger.With("worker_id", workerID)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL, cfg.DatabaseMaxConn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Create job repository
	jobRepo := database.NewJobRepository(db)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		cancel()
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	cancel()
	logger.Info("connected to redis")

	// Create queue consumer
	consumer := queue.NewConsumer(redisClient, queue.ConsumerConfig{
		StreamName:    cfg.QueueStreamName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		ConsumerName:  workerID,
		PollTimeout:   cfg.WorkerPollTimeout,
	}, logger)

	// Ensure consumer group exists
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := consumer.EnsureGroup(ctx); err != nil {
		cancel()
		logger.Error("failed to ensure consumer group", "error", err)
		os.Exit(1)
	}
	cancel()

	// Connect to MinIO
	storageClient, err := storage.New(storage.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		logger.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to minio", "bucket", cfg.MinIOBucket)

	// Create the resize pipeline
	pipeline := resize.NewPipeline(backend.New(), logger)

	resizeMetrics := metrics.NewResizeMetrics("lightresize_worker")
	queueMetrics := metrics.NewQueueMetrics("lightresize_worker")
	consumer.SetMetrics(queueMetrics)

	// Create worker
	worker := &Worker{
		id:             workerID,
		jobRepo:        jobRepo,
		storage:        storageClient,
		consumer:       consumer,
		pipeline:       pipeline,
		metrics:        resizeMetrics,
		queueMetrics:   queueMetrics,
		retentionHours: cfg.RetentionHours,
		logger:         logger,
	}

	// Start health check server
	go startHealthServer(cfg.HTTPPort, logger)

	// Create context for graceful shutdown
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	janitor := cleanup.NewWorker(jobRepo, storageClient, cleanup.Config{
		Interval:  cfg.CleanupInterval,
		BatchSize: cfg.CleanupBatchSize,
	}, logger)
	go janitor.Start(ctx)

	// Setup signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			worker.run(ctx, workerNum)
		}(i)
	}

	logger.Info("worker started", "concurrency", cfg.WorkerConcurrency)

	// Wait for shutdown signal
	<-quit
	logger.Info("shutting down worker...")
	cancel()

	// Wait for all workers to finish
	wg.Wait()
	logger.Info("worker stopped")
}

func (w *Worker) run(ctx context.Context, workerNum int) {
	logger := w.logger.With("goroutine", workerNum)

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker goroutine stopping")
			return
		default:
			// Consume a message
			msg, err := w.consumer.Consume(ctx)
			if err != nil {
				logger.Error("failed to consume message", "error", err)
				time.Sleep(time.Second)
				continue
			}

			if msg == nil {
				// No message available, continue polling
				continue
			}

			// Process the job
			if err := w.processJob(ctx, msg); err != nil {
				logger.Error("failed to process job", "job_id", msg.Job.JobID, "error", err)
				w.queueMetrics.MessagesFailed.Inc()
			}

			// Acknowledge the message
			if err := w.consumer.Acknowledge(ctx, msg.ID); err != nil {
				logger.Error("failed to acknowledge message", "error", err)
			}
		}
	}
}

func (w *Worker) processJob(ctx context.Context, msg *queue.Message) error {
	jobID := msg.Job.JobID
	logger := w.logger.With("job_id", jobID)
	start := time.Now()

	logger.Info("starting resize job")

	// Get job from database
	job, err := w.jobRepo.GetByID(ctx, jobID)
	if errors.Is(err, database.ErrNotFound) {
		logger.Warn("job not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// Check if job is canceled
	if job.Status == models.JobStatusCancelled {
		logger.Info("job canceled, skipping")
		return nil
	}

	// Mark job as processing
	if err := w.jobRepo.StartProcessing(ctx, jobID, w.id); err != nil {
		return fmt.Errorf("failed to start processing: %w", err)
	}

	// Build the resize descriptor from the queued params
	resizeJob, err := msg.Job.Params.ToJob()
	if err != nil {
		w.failJob(ctx, jobID, "invalid resize params: "+err.Error(), start)
		return fmt.Errorf("invalid resize params: %w", err)
	}

	// Download original image
	logger.Info("downloading original image", "key", job.OriginalKey)
	reader, err := w.storage.Download(ctx, job.OriginalKey)
	if err != nil {
		w.failJob(ctx, jobID, "failed to download image: "+err.Error(), start)
		return fmt.Errorf("failed to download image: %w", err)
	}

	// Resize; the pipeline owns and closes the download stream
	var buf bytes.Buffer
	logger.Info("resizing image",
		"width", resizeJob.Width, "height", resizeJob.Height, "fit", resizeJob.Fit)
	if err := w.pipeline.ResizeStream(reader, &buf, resize.LeaveDestinationOpen, resizeJob); err != nil {
		w.failJob(ctx, jobID, "failed to resize image: "+err.Error(), start)
		return fmt.Errorf("failed to resize image: %w", err)
	}

	// Upload resized image
	resultKey := fmt.Sprintf("resized/%s/%s", jobID.String(), resultName(job.OriginalName, resizeJob.Format))
	logger.Info("uploading resized image", "key", resultKey, "size", buf.Len())
	contentType := "image/jpeg"
	if resizeJob.Format == resize.FormatPng {
		contentType = "image/png"
	}
	if err := w.storage.Upload(ctx, resultKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentType); err != nil {
		w.failJob(ctx, jobID, "failed to upload resized image: "+err.Error(), start)
		return fmt.Errorf("failed to upload resized image: %w", err)
	}

	// Mark job as completed
	if err := w.jobRepo.CompleteJob(ctx, jobID, resultKey, w.retentionHours); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	w.metrics.JobsTotal.WithLabelValues("completed").Inc()
	w.metrics.ProcessingDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())

	logger.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) failJob(ctx context.Context, jobID uuid.UUID, msg string, start time.Time) {
	if err := w.jobRepo.FailJob(ctx, jobID, msg); err != nil {
		w.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
	w.metrics.JobsTotal.WithLabelValues("failed").Inc()
	w.metrics.ProcessingDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
}

// resultName swaps the original filename's extension for the output format's.
func resultName(originalName string, format resize.Format) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	if format == resize.FormatPng {
		return base + ".png"
	}
	return base + ".jpg"
}

func startHealthServer(port int, logger *slog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting health server", "addr", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("health server error", "error", err)
	}
}
