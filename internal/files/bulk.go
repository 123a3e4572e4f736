package files

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

// MaxBulkItems bounds one bulk request.
const MaxBulkItems = 50

// ErrInvalidBulkPayload rejects a structurally broken batch: empty list,
// over the size cap, or an item missing its required fields. Structural
// violations reject the whole batch before any item runs.
var ErrInvalidBulkPayload = errors.New("invalid bulk payload")

// BulkOp tags the per-item operation a bulk request fans out.
type BulkOp string

const (
	BulkCreate BulkOp = "create"
	BulkUpdate BulkOp = "update"
	BulkDelete BulkOp = "delete"
)

// IsBulk reports whether a file request carries the bulk shape.
func IsBulk(req *protocol.FileRequest) bool {
	return req.Files != nil
}

// ValidateBulk checks batch structure before dispatch.
func ValidateBulk(op BulkOp, items []protocol.FileItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: files must be a non-empty array", ErrInvalidBulkPayload)
	}
	if len(items) > MaxBulkItems {
		return fmt.Errorf("%w: at most %d files per request, got %d", ErrInvalidBulkPayload, MaxBulkItems, len(items))
	}
	for i, item := range items {
		if item.FilePath == "" {
			return fmt.Errorf("%w: files[%d] missing filePath", ErrInvalidBulkPayload, i)
		}
		if (op == BulkCreate || op == BulkUpdate) && item.Content == "" {
			return fmt.Errorf("%w: files[%d] missing content", ErrInvalidBulkPayload, i)
		}
	}
	return nil
}

// RunBulk lifts the single-file operation into a parallel fan-out with
// per-index accounting. Items run concurrently; the filesystem is the
// source of truth, and no in-memory state is shared between items. Partial
// failure is normal: the batch result carries both successes and errors.
func (s *Service) RunBulk(ctx context.Context, op BulkOp, items []protocol.FileItem) (*protocol.BulkResult, error) {
	if err := ValidateBulk(op, items); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]protocol.BulkItemResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			res, err := s.runOne(ctx, op, item)
			if err != nil {
				results[i] = protocol.BulkItemResult{
					Index:   i,
					File:    item.FilePath,
					Success: false,
					Error:   err.Error(),
					Type:    ErrorKind(err),
				}
				return nil
			}
			results[i] = protocol.BulkItemResult{
				Index:   i,
				File:    item.FilePath,
				Success: true,
				Result:  res,
			}
			return nil
		})
	}
	// Item failures are recorded, never propagated, so Wait cannot fail.
	_ = g.Wait()

	out := &protocol.BulkResult{
		TotalFiles:    len(items),
		ExecutionTime: time.Since(start).String(),
		Results:       results,
	}
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.ErrorCount++
			out.Errors = append(out.Errors, r)
		}
	}
	return out, nil
}

func (s *Service) runOne(ctx context.Context, op BulkOp, item protocol.FileItem) (*protocol.FileResult, error) {
	switch op {
	case BulkCreate:
		return s.Create(ctx, item.FilePath, item.Content, item.Overwrite)
	case BulkUpdate:
		return s.Update(ctx, item.FilePath, item.Content, item.ShouldSnapshot)
	case BulkDelete:
		return s.Delete(ctx, item.FilePath, item.Force)
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidBulkPayload, op)
	}
}
