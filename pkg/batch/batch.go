// Package batch splits id lists into fixed-size chunks and queries each chunk
// with an indexed URN filter.
package batch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/client"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/metrics"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/pagination"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
)

// DefaultBatchSize is the number of ids per request.
const DefaultBatchSize = 80

// ReduceBatchSizeHint is attached to exceptions of failed chunks.
const ReduceBatchSizeHint = "the query may be too large, try to reduce the batch size"

// Outcome classifies one chunk response.
type Outcome int

const (
	// Continue: elements present and non-empty, appended to the result.
	Continue Outcome = iota
	// SoftEmpty: elements present but empty. Logged and counted, nothing recorded.
	SoftEmpty
	// FatalStop: no elements key. Recorded as an exception and no further chunk is issued.
	FatalStop
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case SoftEmpty:
		return "soft_empty"
	case FatalStop:
		return "fatal_stop"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Classify returns the outcome of a chunk response.
func Classify(resp client.Response) Outcome {
	elems, ok := resp.Elements()
	switch {
	case !ok:
		return FatalStop
	case len(elems) == 0:
		return SoftEmpty
	default:
		return Continue
	}
}

// Exception records a failed chunk, or a failure reported inside a chunk's
// response (a page that stopped pagination). Only Fatal exceptions end the
// batch.
type Exception struct {
	// Chunk is the 0-based chunk index. Map renders it 1-based.
	Chunk    int
	IDs      []string
	Response client.Response
	Hint     string
	Fatal    bool
}

// Map renders e for the exceptions array of a response. The chunk number is
// 1-based, so the third chunk reads "chunk":3.
func (e Exception) Map() map[string]any {
	ids := make([]any, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id
	}
	m := map[string]any{
		"chunk":    e.Chunk + 1,
		"ids":      ids,
		"response": map[string]any(e.Response),
	}
	if e.Hint != "" {
		m["hint"] = e.Hint
	}
	return m
}

// Result accumulates chunk responses. Elements keep chunk order.
type Result struct {
	Elements    []any
	Exceptions  []Exception
	Chunks      int // planned chunks
	Issued      int // chunks actually requested
	EmptyChunks int
}

// Stopped reports whether a chunk ended the batch early.
func (r Result) Stopped() bool {
	for _, e := range r.Exceptions {
		if e.Fatal {
			return true
		}
	}
	return false
}

// Response renders r in the {paging, elements, exceptions} shape the
// formatter reads.
func (r Result) Response() client.Response {
	elements := r.Elements
	if elements == nil {
		elements = []any{}
	}
	resp := client.Response{
		client.KeyPaging:   client.Paging{Count: len(elements), Total: len(elements)}.Map(),
		client.KeyElements: elements,
	}
	if len(r.Exceptions) > 0 {
		ex := make([]any, len(r.Exceptions))
		for i, e := range r.Exceptions {
			ex[i] = e.Map()
		}
		resp[client.KeyExceptions] = ex
	}
	return resp
}

// Chunk splits ids into contiguous chunks of size, the last one shorter.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Driver issues chunked requests through a fetcher. Handing it a
// pagination.Paginator paginates every chunk; handing it the client issues
// one request per chunk.
type Driver struct {
	fetcher pagination.Fetcher
	logger  zerolog.Logger
}

// NewDriver creates a batch driver
func NewDriver(fetcher pagination.Fetcher, logger zerolog.Logger) *Driver {
	return &Driver{fetcher: fetcher, logger: logger}
}

// Run runs Driver.Run without logging.
func Run(ctx context.Context, fetcher pagination.Fetcher, ids []string, cat category.Category, url string, headers http.Header, baseParams query.Params, batchSize int) (Result, error) {
	return NewDriver(fetcher, zerolog.Nop()).Run(ctx, ids, cat, url, headers, baseParams, batchSize)
}

// Run queries ids in chunks of batchSize. Each chunk merges baseParams with
// the id filter for cat. The first chunk without an elements key is recorded
// in Result.Exceptions and ends the batch; earlier elements are kept.
// Exceptions carried inside a successful chunk response are recorded too but
// do not stop the batch. The error is non-nil for invalid arguments and
// transport failures.
func (d *Driver) Run(ctx context.Context, ids []string, cat category.Category, url string, headers http.Header, baseParams query.Params, batchSize int) (Result, error) {
	if batchSize <= 0 {
		return Result{}, fmt.Errorf("batch size must be positive (got %d)", batchSize)
	}

	chunks := Chunk(ids, batchSize)
	result := Result{Chunks: len(chunks)}

	for i, chunk := range chunks {
		filter, err := query.EncodeIDs(chunk, cat)
		if err != nil {
			return result, err
		}

		result.Issued++
		resp, err := d.fetcher.Get(ctx, url, headers, baseParams.Merge(filter))
		if err != nil {
			return result, fmt.Errorf("chunk %d of %s: %w", i, cat, err)
		}

		outcome := Classify(resp)
		metrics.ChunksTotal.WithLabelValues(cat.String(), outcome.String()).Inc()

		if outcome != FatalStop {
			for _, ex := range resp.Exceptions() {
				detail, ok := ex.(map[string]any)
				if !ok {
					detail = map[string]any{"exception": ex}
				}
				result.Exceptions = append(result.Exceptions, Exception{
					Chunk:    i,
					IDs:      append([]string(nil), chunk...),
					Response: client.Response(detail),
				})
			}
		}

		switch outcome {
		case Continue:
			elems, _ := resp.Elements()
			result.Elements = append(result.Elements, elems...)
			d.logger.Debug().
				Str(logging.FieldCategory, cat.String()).
				Int(logging.FieldChunk, i).
				Int(logging.FieldElements, len(elems)).
				Msg("Chunk fetched")

		case SoftEmpty:
			result.EmptyChunks++
			d.logger.Warn().
				Str(logging.FieldCategory, cat.String()).
				Int(logging.FieldChunk, i).
				Int("ids", len(chunk)).
				Msg("Chunk returned no elements - skipping")

		case FatalStop:
			result.Exceptions = append(result.Exceptions, Exception{
				Chunk:    i,
				IDs:      append([]string(nil), chunk...),
				Response: resp,
				Hint:     ReduceBatchSizeHint,
				Fatal:    true,
			})
			d.logger.Error().
				Str(logging.FieldCategory, cat.String()).
				Int(logging.FieldChunk, i).
				Int(logging.FieldStatus, resp.Status()).
				Int("remaining_chunks", len(chunks)-i-1).
				Msg("Chunk failed - stopping batch")
			return result, nil
		}
	}

	return result, nil
}
