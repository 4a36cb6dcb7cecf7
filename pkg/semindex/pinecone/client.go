// Package pinecone implements the semantic index on a Pinecone index.
package pinecone

import (
	"context"
	"fmt"

	"github.com/inkwell-ai/recall/pkg/semindex"
	"github.com/inkwell-ai/recall/pkg/telemetry"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// Config holds Pinecone-specific configuration.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// IndexName is the Pinecone index holding prompt vectors.
	IndexName string

	// IndexHost is the direct host URL; resolved from IndexName when
	// empty.
	IndexHost string

	// Namespace isolates this cache's vectors within the index.
	Namespace string
}

// Index implements semindex.Index on Pinecone.
type Index struct {
	cfg     Config
	pc      *pinecone.Client
	idxConn *pinecone.IndexConnection
}

// New connects to Pinecone, resolving the index host if needed.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.IndexName == "" && cfg.IndexHost == "" {
		return nil, fmt.Errorf("index name or host is required")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	host := cfg.IndexHost
	if host == "" {
		idx, err := pc.DescribeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %q: %w", cfg.IndexName, err)
		}
		host = idx.Host
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	return &Index{cfg: cfg, pc: pc, idxConn: idxConn}, nil
}

// Add upserts the prompt vector under the cache key, which doubles as
// the Pinecone vector id.
func (x *Index) Add(ctx context.Context, key string, vector []float32) error {
	if len(vector) == 0 {
		return semindex.ErrEmptyVector
	}

	meta, err := structpb.NewStruct(map[string]interface{}{"cache_key": key})
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	values := make([]float32, len(vector))
	copy(values, vector)

	_, err = x.idxConn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       key,
		Values:   &values,
		Metadata: meta,
	}})
	if err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	return nil
}

// Search queries the single nearest vector and applies the threshold
// client-side, since Pinecone has no server-side score cutoff.
func (x *Index) Search(ctx context.Context, vector []float32, threshold float64) (semindex.Candidate, bool, error) {
	if len(vector) == 0 {
		return semindex.Candidate{}, false, semindex.ErrEmptyVector
	}

	ctx, span := telemetry.StartIndexSearch(ctx, "pinecone", threshold)
	defer span.End()

	resp, err := x.idxConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            1,
		IncludeMetadata: true,
	})
	if err != nil {
		err = fmt.Errorf("pinecone query: %w", err)
		telemetry.RecordError(span, err)
		return semindex.Candidate{}, false, err
	}
	if len(resp.Matches) == 0 {
		return semindex.Candidate{}, false, nil
	}

	match := resp.Matches[0]
	if float64(match.Score) < threshold {
		return semindex.Candidate{}, false, nil
	}

	key := match.Vector.Id
	if match.Vector.Metadata != nil {
		if v, ok := match.Vector.Metadata.AsMap()["cache_key"].(string); ok && v != "" {
			key = v
		}
	}
	return semindex.Candidate{Key: key, Score: float64(match.Score)}, true, nil
}

// Clear removes all vectors in the configured namespace.
func (x *Index) Clear(ctx context.Context) error {
	if err := x.idxConn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("pinecone clear: %w", err)
	}
	return nil
}

// Close releases the index connection.
func (x *Index) Close() error {
	if x.idxConn != nil {
		return x.idxConn.Close()
	}
	return nil
}
