package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/livinglib/internal/model"
)

type Ingester interface {
	Run(ctx context.Context) (*model.IngestResult, error)
}

// IngestJob runs one ingestion pass over the unprocessed file assets.
type IngestJob struct {
	ingester Ingester
}

func NewIngestJob(ingester Ingester) *IngestJob {
	return &IngestJob{ingester: ingester}
}

func (j *IngestJob) Name() string {
	return "pdf_ingest"
}

func (j *IngestJob) Run(ctx context.Context) error {
	if j.ingester == nil {
		return nil
	}
	res, err := j.ingester.Run(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("ingest job result",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("chunks", res.Chunks))
	return nil
}
