package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rasterlabs/rasterflow/internal/domain"
	"github.com/rasterlabs/rasterflow/internal/imaging"
)

const SourceTypeLocalFile = "local_file"

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Outputs    []domain.OutputSpec
}

type Output struct {
	SpecID  string
	Format  string
	Path    string
	Bytes   int
	Width   uint32
	Height  uint32
	Success bool
}

type Result struct {
	SourceBytes int
	Outputs     []Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, spec domain.OutputSpec, data []byte, format imaging.Format, dims imaging.Dimensions) (Output, error)
}

// Processor runs one conversion job: fetch the source once, convert it
// into every requested output format, and emit each result.
type Processor struct {
	fetcher Fetcher
	emitter Emitter
}

func NewProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if emitter == nil {
		return nil, errors.New("emitter is required")
	}
	return &Processor{fetcher: fetcher, emitter: emitter}, nil
}

func NewLocalProcessor(outputDir string) (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: outputDir})
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Outputs) == 0 {
		return Result{}, errors.New("job must request at least one output")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	result := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]Output, 0, len(req.Outputs)),
	}
	for _, spec := range req.Outputs {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		target, err := imaging.ParseFormat(spec.Format)
		if err != nil {
			return Result{}, fmt.Errorf("convert stage output=%s: %w", spec.ID, err)
		}

		// Convert takes ownership of its input, so each output gets its
		// own copy of the source bytes.
		converted, err := imaging.ConvertWith(
			append([]byte(nil), sourceBytes...),
			target,
			imaging.EncodeOptions{Quality: spec.Quality},
		)
		if err != nil {
			return Result{}, fmt.Errorf("convert stage output=%s target=%s: %w", spec.ID, target, err)
		}

		dims, err := imaging.GetDimensions(converted)
		if err != nil {
			return Result{}, fmt.Errorf("probe stage output=%s: %w", spec.ID, err)
		}

		written, err := p.emitter.Emit(ctx, req, spec, converted, target, dims)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage output=%s target=%s: %w", spec.ID, target, err)
		}
		result.Outputs = append(result.Outputs, written)
	}

	return result, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, spec domain.OutputSpec, data []byte, format imaging.Format, dims imaging.Dimensions) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(spec.ID) == "" {
		return Output{}, errors.New("output spec id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s.%s", sanitizePathToken(spec.ID), format)
	fullPath := filepath.Join(jobDir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		SpecID:  spec.ID,
		Format:  format.String(),
		Path:    fullPath,
		Bytes:   len(data),
		Width:   dims.Width,
		Height:  dims.Height,
		Success: true,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
