package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rasterlabs/rasterflow/internal/domain"
	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/rasterlabs/rasterflow/internal/storage"
)

const SourceTypeS3Presigned = domain.SourceTypeS3Presigned

type ObjectStoreFetcher struct {
	Storage *storage.Client
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return f.Storage.ReadObject(ctx, req.ObjectKey)
}

type ObjectStoreEmitter struct {
	Storage      *storage.Client
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, spec domain.OutputSpec, data []byte, format imaging.Format, dims imaging.Dimensions) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(spec.ID) == "" {
		return Output{}, errors.New("output spec id is required")
	}

	objectKey := path.Join(
		defaultOutputPrefix(e.OutputPrefix),
		sanitizePathToken(req.JobID),
		fmt.Sprintf("%s.%s", sanitizePathToken(spec.ID), format),
	)

	if err := e.Storage.WriteObject(ctx, objectKey, data, format.ContentType()); err != nil {
		return Output{}, err
	}

	return Output{
		SpecID:  spec.ID,
		Format:  format.String(),
		Path:    objectKey,
		Bytes:   len(data),
		Width:   dims.Width,
		Height:  dims.Height,
		Success: true,
	}, nil
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "outputs"
	}
	return prefix
}
