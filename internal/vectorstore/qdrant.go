package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("portfolio-rag.vectorstore.qdrant")

// payload keys reserved for chunk content and the caller's document ID.
const (
	payloadContent = "content"
	payloadID      = "id"
)

// pointIDNamespace derives stable qdrant UUIDs from non-UUID document IDs.
var pointIDNamespace = uuid.MustParse("6f1b7c1e-2d4e-4a8b-9c3f-5e7a0b1d2c3f")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334), not the REST port (6333).
	Port int

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// APIKey authenticates against Qdrant Cloud; empty for local servers.
	APIKey string

	// Collection is the collection holding the corpus.
	Collection string

	// VectorSize must match the embedder's output dimension.
	VectorSize uint64

	// MustExist fails construction when the collection is missing
	// instead of creating it.
	MustExist bool

	// MaxRetries bounds retries of transient gRPC failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry. Default: 500ms.
	RetryBackoff time.Duration

	// MaxMessageSize is the gRPC message limit in bytes. Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// IsTransientError reports whether err is a gRPC failure worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store using Qdrant's native gRPC client.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore connects to Qdrant, checks its health and makes sure the
// collection exists (or fails when MustExist is set and it does not).
func NewQdrantStore(ctx context.Context, config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS && config.APIKey != "" {
		logger.Warn("qdrant API key sent over plaintext gRPC")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{client: client, embedder: embedder, config: config, logger: logger}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.ensureCollection(checkCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store opened",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if exists {
		return nil
	}
	if s.config.MustExist {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.config.Collection)
	}
	return s.createCollection(ctx)
}

func (s *QdrantStore) createCollection(ctx context.Context) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// retry runs op, retrying transient failures with exponential backoff.
func (s *QdrantStore) retry(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		if attempt >= s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// AddDocuments embeds docs and upserts them as points.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
	}

	ids := make([]string, len(docs))
	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		if uint64(len(embeddings[i])) != s.config.VectorSize {
			return nil, fmt.Errorf("%w: document %d has %d dimensions, collection uses %d",
				ErrDimensionMismatch, i, len(embeddings[i]), s.config.VectorSize)
		}
		ids[i] = documentID(doc)
		points[i] = &qdrant.PointStruct{
			Id:      pointID(ids[i]),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: toPayload(ids[i], doc),
		}
	}

	err = s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// Search returns the k nearest chunks to query.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.query(ctx, "QdrantStore.Search", query, k, nil, false)
}

// SearchWithThreshold pushes the threshold down to Qdrant's score_threshold.
func (s *QdrantStore) SearchWithThreshold(ctx context.Context, query string, k int, threshold float32) ([]SearchResult, error) {
	return s.query(ctx, "QdrantStore.SearchWithThreshold", query, k, &threshold, false)
}

// ExactSearch disables the HNSW index and compares against every point.
func (s *QdrantStore) ExactSearch(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.query(ctx, "QdrantStore.ExactSearch", query, k, nil, true)
}

func (s *QdrantStore) query(ctx context.Context, spanName, query string, k int, threshold *float32, exact bool) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
		attribute.Bool("exact", exact),
	)

	if err := validateQuery(query, k); err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	req := &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: threshold,
	}
	if exact {
		req.Params = &qdrant.SearchParams{Exact: qdrant.PtrOf(true)}
	}

	var points []*qdrant.ScoredPoint
	err = s.retry(ctx, "query", func() error {
		res, err := s.client.Query(ctx, req)
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]SearchResult, len(points))
	for i, p := range points {
		results[i] = fromPoint(p)
	}
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var n uint64
	err := s.retry(ctx, "count", func() error {
		res, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		n = res
		return nil
	})
	return int(n), err
}

// Reset drops and recreates the collection.
func (s *QdrantStore) Reset(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Reset")
	defer span.End()

	if err := s.client.DeleteCollection(ctx, s.config.Collection); err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != grpccodes.NotFound {
			span.RecordError(err)
			return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
		}
	}
	if err := s.createCollection(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("qdrant collection reset", zap.String("collection", s.config.Collection))
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// pointID uses the document ID when it is a UUID and otherwise derives a
// stable one; the original ID is kept in the payload.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(pointIDNamespace, []byte(id)).String())
}

func toPayload(id string, doc Document) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		payload[k] = stringValue(v)
	}
	payload[payloadContent] = stringValue(doc.Content)
	payload[payloadID] = stringValue(id)
	return payload
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func fromPoint(p *qdrant.ScoredPoint) SearchResult {
	r := SearchResult{Score: p.GetScore(), Metadata: make(map[string]string, len(p.GetPayload()))}
	for k, v := range p.GetPayload() {
		var str string
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			str = val.StringValue
		case *qdrant.Value_IntegerValue:
			str = fmt.Sprintf("%d", val.IntegerValue)
		case *qdrant.Value_DoubleValue:
			str = fmt.Sprintf("%g", val.DoubleValue)
		case *qdrant.Value_BoolValue:
			str = fmt.Sprintf("%t", val.BoolValue)
		default:
			continue
		}
		switch k {
		case payloadContent:
			r.Content = str
		case payloadID:
			r.ID = str
		default:
			r.Metadata[k] = str
		}
	}
	return r
}

var _ Store = (*QdrantStore)(nil)
