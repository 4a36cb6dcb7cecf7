// Package qdrant implements the semantic index on a Qdrant collection
// over gRPC.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/inkwell-ai/recall/pkg/semindex"
	"github.com/inkwell-ai/recall/pkg/telemetry"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Config holds Qdrant-specific configuration.
type Config struct {
	// Host is the Qdrant server host (required).
	Host string

	// GRPCPort is the gRPC port (default: 6334).
	GRPCPort int

	// Collection is the Qdrant collection holding prompt vectors
	// (required).
	Collection string

	// APIKey authenticates requests when set.
	APIKey string

	// UseTLS enables TLS for the connection.
	UseTLS bool
}

// Index implements semindex.Index on Qdrant.
type Index struct {
	cfg        Config
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// New connects to Qdrant and returns an Index over the configured
// collection.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = 6334
	}

	var opts []grpc.DialOption
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	return &Index{
		cfg:        cfg,
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
	}, nil
}

func (x *Index) outgoing(ctx context.Context) context.Context {
	if x.cfg.APIKey != "" {
		return metadata.AppendToOutgoingContext(ctx, "api-key", x.cfg.APIKey)
	}
	return ctx
}

// pointID derives a Qdrant UUID point id from a cache key. Keys are
// SHA-256 hex, so the first 32 hex digits format directly as a UUID.
func pointID(key string) string {
	if len(key) < 32 {
		key = fmt.Sprintf("%032s", key)
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", key[0:8], key[8:12], key[12:16], key[16:20], key[20:32])
}

// Add upserts the prompt vector, carrying the full cache key in the
// point payload.
func (x *Index) Add(ctx context.Context, key string, vector []float32) error {
	if len(vector) == 0 {
		return semindex.ErrEmptyVector
	}

	point := &pb.PointStruct{
		Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(key)}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{
			Vector: &pb.Vector{Data: vector},
		}},
		Payload: map[string]*pb.Value{
			"cache_key": {Kind: &pb.Value_StringValue{StringValue: key}},
		},
	}

	_, err := x.points.Upsert(x.outgoing(ctx), &pb.UpsertPoints{
		CollectionName: x.collection,
		Points:         []*pb.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search asks Qdrant for the single nearest point at or above
// threshold. Qdrant breaks exact score ties by point id, so the
// freshness preference of the in-process index is approximated, not
// guaranteed, on this backend.
func (x *Index) Search(ctx context.Context, vector []float32, threshold float64) (semindex.Candidate, bool, error) {
	if len(vector) == 0 {
		return semindex.Candidate{}, false, semindex.ErrEmptyVector
	}

	ctx, span := telemetry.StartIndexSearch(ctx, "qdrant", threshold)
	defer span.End()

	minScore := float32(threshold)
	resp, err := x.points.Search(x.outgoing(ctx), &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          1,
		ScoreThreshold: &minScore,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		err = fmt.Errorf("qdrant search: %w", err)
		telemetry.RecordError(span, err)
		return semindex.Candidate{}, false, err
	}
	if len(resp.Result) == 0 {
		return semindex.Candidate{}, false, nil
	}

	point := resp.Result[0]
	key := ""
	if v, ok := point.Payload["cache_key"]; ok {
		key = v.GetStringValue()
	}
	if key == "" {
		return semindex.Candidate{}, false, nil
	}
	return semindex.Candidate{Key: key, Score: float64(point.Score)}, true, nil
}

// Clear deletes every point in the collection.
func (x *Index) Clear(ctx context.Context) error {
	_, err := x.points.Delete(x.outgoing(ctx), &pb.DeletePoints{
		CollectionName: x.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: &pb.Filter{}},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (x *Index) Close() error {
	if x.conn != nil {
		return x.conn.Close()
	}
	return nil
}
