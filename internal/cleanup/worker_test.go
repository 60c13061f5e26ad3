package cleanup

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/imazen/lightresize/internal/database"
	"github.com/imazen/lightresize/internal/models"
	"github.com/imazen/lightresize/internal/storage"
)

func setupCleanupTest(t *testing.T) (*Worker, *database.DB, *storage.Storage) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.New(dbURL, 5)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	minioEndpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}

	storageClient, err := storage.New(storage.Config{
		Endpoint:  minioEndpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "lightresize-test",
		UseSSL:    false,
	})
	if err != nil {
		t.Fatalf("failed to create storage client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := storageClient.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to ensure bucket: %v", err)
	}

	jobRepo := database.NewJobRepository(db)

	worker := NewWorker(jobRepo, storageClient, Config{
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, logger)

	return worker, db, storageClient
}

// createExpiredJob inserts a completed job whose retention has already passed.
func createExpiredJob(t *testing.T, db *database.DB, originalKey, resultKey string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	jobRepo := database.NewJobRepository(db)

	job := models.NewJob(originalKey, "test.jpg", "image/jpeg", 100, models.ResizeParams{Width: 50})
	if err := jobRepo.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if err := jobRepo.StartProcessing(ctx, job.ID, "test-worker"); err != nil {
		t.Fatalf("failed to start processing: %v", err)
	}
	// Retention of -1 hours puts delete_at in the past.
	if err := jobRepo.CompleteJob(ctx, job.ID, resultKey, -1); err != nil {
		t.Fatalf("failed to complete job: %v", err)
	}
	return job.ID
}

func TestWorker_Cleanup(t *testing.T) {
	worker, db, storageClient := setupCleanupTest(t)
	defer db.Close()

	ctx := context.Background()

	originalKey := "original/" + uuid.New().String() + "/test.jpg"
	resultKey := "resized/" + uuid.New().String() + "/test.jpg"

	content := []byte("fake image bytes")
	if err := storageClient.Upload(ctx, originalKey, bytes.NewReader(content), int64(len(content)), "image/jpeg"); err != nil {
		t.Fatalf("failed to upload original: %v", err)
	}
	if err := storageClient.Upload(ctx, resultKey, bytes.NewReader(content), int64(len(content)), "image/jpeg"); err != nil {
		t.Fatalf("failed to upload result: %v", err)
	}

	jobID := createExpiredJob(t, db, originalKey, resultKey)

	if err := worker.cleanup(ctx); err != nil {
		t.Fatalf("cleanup() error = %v", err)
	}

	// The job row is gone.
	jobRepo := database.NewJobRepository(db)
	if _, err := jobRepo.GetByID(ctx, jobID); err != database.ErrNotFound {
		t.Errorf("GetByID after cleanup = %v, want ErrNotFound", err)
	}

	// Both objects are gone.
	if _, err := storageClient.Stat(ctx, originalKey); err == nil {
		t.Error("original object still exists after cleanup")
	}
	if _, err := storageClient.Stat(ctx, resultKey); err == nil {
		t.Error("result object still exists after cleanup")
	}
}

func TestWorker_CleanupNoJobsReady(t *testing.T) {
	worker, db, _ := setupCleanupTest(t)
	defer db.Close()

	// A cycle with nothing expired is a no-op, not an error.
	if err := worker.cleanup(context.Background()); err != nil {
		t.Errorf("cleanup() error = %v", err)
	}
}

func TestNewWorker_DefaultConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	worker := NewWorker(nil, nil, Config{}, logger)

	if worker.interval != 5*time.Minute {
		t.Errorf("expected default interval 5m, got %v", worker.interval)
	}

	if worker.batchSize != 100 {
		t.Errorf("expected default batch size 100, got %d", worker.batchSize)
	}
}
