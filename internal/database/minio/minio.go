package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"monitoring-service/internal/config"
	"monitoring-service/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient wraps the MinIO client with the buckets of the monitoring service.
type MinioClient struct {
	client *minio.Client
	config config.MinioConfig
}

// Storage defines bucket names used by the monitoring service
var Storage = struct {
	MonitoringRuns string
}{
	MonitoringRuns: "monitoring-runs",
}

var BucketNames = []string{
	Storage.MonitoringRuns,
}

// NewMinioClient initializes a new MinIO client and makes sure the buckets exist.
func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		slog.Warn("Invalid value for MinIO secure flag, defaulting to false", "value", cfg.MinioSecure)
		isSecure = false
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err = minioClient.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}
	slog.Info("Connected to MinIO", "endpoint", cfg.MinioURL)

	mc := &MinioClient{
		client: minioClient,
		config: cfg,
	}
	for _, bucketName := range BucketNames {
		if err := mc.ensureBucket(ctx, bucketName); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", bucketName, err)
		}
	}
	return mc, nil
}

func (mc *MinioClient) ensureBucket(ctx context.Context, bucketName string) error {
	exists, err := mc.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	err = mc.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{
		Region: mc.config.MinioLocation,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucketName, err)
	}
	slog.Info("Created bucket", "bucket", bucketName)
	return nil
}

// UploadBytes uploads byte data to the specified bucket
func (mc *MinioClient) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	_, err := mc.client.PutObject(ctx, bucketName, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload bytes to %s in bucket %s: %w", objectName, bucketName, err)
	}
	return nil
}

// ReadBytes downloads a whole object.
func (mc *MinioClient) ReadBytes(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	object, err := mc.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s from bucket %s: %w", objectName, bucketName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s from bucket %s: %w", objectName, bucketName, err)
	}
	return data, nil
}

// ListFiles lists all objects in a bucket under prefix.
func (mc *MinioClient) ListFiles(ctx context.Context, bucketName, prefix string) ([]minio.ObjectInfo, error) {
	var objects []minio.ObjectInfo
	objectCh := mc.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects in bucket %s: %w", bucketName, object.Err)
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// Ping lists buckets to verify the connection.
func (mc *MinioClient) Ping(ctx context.Context) error {
	_, err := mc.client.ListBuckets(ctx)
	return err
}

// ============================================================================
// RUN ARCHIVE
// ============================================================================

// RunArchive stores the statistic tuples produced for each configuration of a pipeline run.
type RunArchive struct {
	mc *MinioClient
}

func NewRunArchive(mc *MinioClient) *RunArchive {
	return &RunArchive{mc: mc}
}

// RunObjectName is <run>/<area>/<index>.json inside the monitoring-runs bucket.
func RunObjectName(runID, areaID uuid.UUID, indexCode string) string {
	return fmt.Sprintf("%s/%s/%s.json", runID, areaID, strings.ToUpper(indexCode))
}

type archivedRun struct {
	RunID      uuid.UUID               `json:"run_id"`
	AreaID     uuid.UUID               `json:"area_id"`
	IndexCode  string                  `json:"index_code"`
	ArchivedAt time.Time               `json:"archived_at"`
	Tuples     []models.StatisticTuple `json:"tuples"`
}

func (a *RunArchive) ArchiveRun(
	ctx context.Context,
	runID, areaID uuid.UUID,
	indexCode string,
	tuples []models.StatisticTuple,
) error {
	body, err := json.Marshal(archivedRun{
		RunID:      runID,
		AreaID:     areaID,
		IndexCode:  strings.ToUpper(indexCode),
		ArchivedAt: time.Now().UTC(),
		Tuples:     tuples,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run archive: %w", err)
	}

	objectName := RunObjectName(runID, areaID, indexCode)
	if err := a.mc.UploadBytes(ctx, Storage.MonitoringRuns, objectName, body, "application/json"); err != nil {
		return err
	}
	slog.Info("Archived run statistics", "object", objectName, "tuples", len(tuples))
	return nil
}

// LoadRun returns the tuples archived for (run, area, index).
func (a *RunArchive) LoadRun(ctx context.Context, runID, areaID uuid.UUID, indexCode string) ([]models.StatisticTuple, error) {
	data, err := a.mc.ReadBytes(ctx, Storage.MonitoringRuns, RunObjectName(runID, areaID, indexCode))
	if err != nil {
		return nil, err
	}
	var archived archivedRun
	if err := json.Unmarshal(data, &archived); err != nil {
		return nil, fmt.Errorf("failed to decode run archive: %w", err)
	}
	return archived.Tuples, nil
}

// ListRunObjects lists the archived objects of a run.
func (a *RunArchive) ListRunObjects(ctx context.Context, runID uuid.UUID) ([]string, error) {
	objects, err := a.mc.ListFiles(ctx, Storage.MonitoringRuns, runID.String()+"/")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(objects))
	for _, object := range objects {
		names = append(names, object.Key)
	}
	return names, nil
}
