package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rasterlabs/rasterflow/internal/imaging"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

// CreateJobRequest asks for one source image to be re-encoded into one
// or more target formats.
type CreateJobRequest struct {
	SourceType string       `json:"source_type"`
	WebhookURL string       `json:"webhook_url,omitempty"`
	ObjectKey  string       `json:"object_key,omitempty"`
	Outputs    []OutputSpec `json:"outputs"`
}

// OutputSpec names one conversion target. Format is a canonical format
// name ("png", "jpeg"/"jpg", "gif", "bmp"); Quality applies to JPEG
// targets only.
type OutputSpec struct {
	ID      string `json:"id"`
	Format  string `json:"format"`
	Quality int    `json:"quality,omitempty"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Outputs    []OutputSpec
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if len(r.Outputs) == 0 {
		return errors.New("outputs must contain at least one target")
	}
	for i, out := range r.Outputs {
		if strings.TrimSpace(out.ID) == "" {
			return fmt.Errorf("outputs[%d].id is required", i)
		}
		target, err := imaging.ParseFormat(out.Format)
		if err != nil {
			return fmt.Errorf("outputs[%d].format: %w", i, err)
		}
		if !target.CanEncode() {
			return fmt.Errorf("outputs[%d].format: %w: %s", i, imaging.ErrUnsupportedTarget, target)
		}
		if out.Quality < 0 || out.Quality > 100 {
			return fmt.Errorf("outputs[%d].quality must be between 0 and 100", i)
		}
	}
	return nil
}
