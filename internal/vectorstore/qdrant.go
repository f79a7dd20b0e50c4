package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/coursechat/coursechat-go/internal/course"
)

// Payload field names shared by both collections.
const (
	fieldCourseID   = "course_id"
	fieldTitle      = "title"
	fieldInstructor = "instructor"
	fieldLink       = "link"
	fieldLessons    = "lessons"
	fieldText       = "text"
	fieldLessonNum  = "lesson_number"
	fieldChunkIndex = "chunk_index"

	fieldEmbeddingModel = "embedding_model"
	fieldDimensions     = "dimensions"
)

// SchemaMismatchError reports that the persisted collections were built with
// a different embedding model than the one currently configured. The stored
// vectors cannot be trusted; the operator must re-ingest.
type SchemaMismatchError struct {
	// Stored is the embedding model recorded in the persisted schema.
	Stored string
	// Configured is the embedding model currently configured.
	Configured string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("vectorstore: collections were embedded with %q but %q is configured; re-ingest the document set",
		e.Stored, e.Configured)
}

// QdrantConfig holds connection and collection parameters for a Qdrant-backed
// store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// CatalogCollection is the collection holding one entry per course.
	CatalogCollection string

	// ContentCollection is the collection holding one entry per chunk.
	ContentCollection string

	// VectorSize is the dimensionality of the embeddings.
	VectorSize uint64

	// EmbeddingModel names the embedding model producing the vectors. It is
	// persisted with the collections and verified on every open.
	EmbeddingModel string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance. Texts are
// embedded internally via the configured Embedder, so callers deal only in
// course records and query strings.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// embedder converts texts to vectors for both upserts and queries.
	embedder Embedder

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// schemaPointID is the well-known point ID of the single schema record.
var schemaPointID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("coursechat:schema")).String()

// NewQdrantStore creates a QdrantStore, ensuring the catalog, content, and
// schema collections exist and that the persisted embedding identity matches
// the configured one. A mismatch fails with *SchemaMismatchError rather than
// silently serving stale vectors.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig, embedder Embedder) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vectorstore: embedder must not be nil")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CatalogCollection == "" || cfg.ContentCollection == "" {
		return nil, fmt.Errorf("vectorstore: catalog and content collection names are required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to create qdrant client: %w", err)
	}

	s := &QdrantStore{client: client, embedder: embedder, cfg: cfg}
	if err := s.ensureCollection(ctx, cfg.CatalogCollection, cfg.VectorSize); err != nil {
		return nil, err
	}
	if err := s.ensureCollection(ctx, cfg.ContentCollection, cfg.VectorSize); err != nil {
		return nil, err
	}
	if err := s.ensureContentIndexes(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// ensureCollection creates a cosine-distance collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context, name string, size uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: failed to check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to create collection %q: %w", name, err)
	}
	return nil
}

// ensureContentIndexes creates the payload indexes that make course and
// lesson filters exact-match fast on the content collection. Creating an
// index that already exists is a no-op server-side.
func (s *QdrantStore) ensureContentIndexes(ctx context.Context) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldCourseID, qdrant.FieldType_FieldTypeKeyword},
		{fieldLessonNum, qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.ContentCollection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
		})
		if err != nil {
			return fmt.Errorf("vectorstore: failed to index %q on %q: %w", idx.field, s.cfg.ContentCollection, err)
		}
	}
	return nil
}

// schemaCollection is the tiny single-point collection recording which
// embedding model produced the persisted vectors.
func (s *QdrantStore) schemaCollection() string {
	return s.cfg.CatalogCollection + "_schema"
}

// ensureSchema writes the embedding identity on first open and verifies it
// on every subsequent open.
func (s *QdrantStore) ensureSchema(ctx context.Context) error {
	name := s.schemaCollection()
	if err := s.ensureCollection(ctx, name, 1); err != nil {
		return err
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(schemaPointID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to read schema record: %w", err)
	}

	if len(points) > 0 {
		stored := points[0].Payload[fieldEmbeddingModel].GetStringValue()
		if stored != s.cfg.EmbeddingModel {
			return &SchemaMismatchError{Stored: stored, Configured: s.cfg.EmbeddingModel}
		}
		return nil
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(schemaPointID),
			Vectors: qdrant.NewVectors(0),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldEmbeddingModel: s.cfg.EmbeddingModel,
				fieldDimensions:     int64(s.cfg.VectorSize), //nolint:gosec // dimensions are small
			}),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: failed to write schema record: %w", err)
	}
	return nil
}

// UpsertCourse stores the catalog entry for c, embedding the course title.
// Idempotent: a course whose ID is already present is left untouched so a
// partially completed prior ingestion run can be resumed safely.
func (s *QdrantStore) UpsertCourse(ctx context.Context, c *course.Course) (bool, error) {
	exists, err := s.HasCourse(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{c.Title})
	if err != nil {
		return false, fmt.Errorf("vectorstore: failed to embed course title: %w", err)
	}

	lessons, err := json.Marshal(c.Lessons)
	if err != nil {
		return false, fmt.Errorf("vectorstore: failed to encode lessons: %w", err)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.CatalogCollection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(course.PointID(c.ID)),
			Vectors: qdrant.NewVectors(vectors[0]...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldCourseID:   c.ID,
				fieldTitle:      c.Title,
				fieldInstructor: c.Instructor,
				fieldLink:       c.Link,
				fieldLessons:    string(lessons),
			}),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("vectorstore: catalog upsert failed: %w", err)
	}
	return true, nil
}

// HasCourse reports whether the catalog holds an entry for courseID.
func (s *QdrantStore) HasCourse(ctx context.Context, courseID string) (bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.CatalogCollection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(course.PointID(courseID))},
	})
	if err != nil {
		return false, fmt.Errorf("vectorstore: catalog lookup failed: %w", err)
	}
	return len(points) > 0, nil
}

// AddChunks embeds and appends content chunks in one batch.
func (s *QdrantStore) AddChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("vectorstore: failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectorstore: expected %d chunk embeddings, got %d", len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, ch := range chunks {
		payload := map[string]any{
			fieldText:       ch.Text,
			fieldCourseID:   ch.CourseID,
			fieldChunkIndex: int64(ch.Index),
		}
		if ch.LessonNumber != nil {
			payload[fieldLessonNum] = int64(*ch.LessonNumber)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(course.ChunkPointID(ch.CourseID, ch.Index)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.ContentCollection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: content upsert failed: %w", err)
	}
	return nil
}

// QueryCatalog performs a cosine similarity search over course identities.
func (s *QdrantStore) QueryCatalog(ctx context.Context, nameText string, k int) ([]CatalogMatch, error) {
	vec, err := s.embedQuery(ctx, nameText)
	if err != nil {
		return nil, err
	}

	limit := uint64(max(k, 1)) //nolint:gosec // k is a small positive result count
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.CatalogCollection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: catalog query failed: %w", err)
	}

	matches := make([]CatalogMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, CatalogMatch{
			CourseID: r.Payload[fieldCourseID].GetStringValue(),
			Title:    r.Payload[fieldTitle].GetStringValue(),
			Score:    r.Score,
		})
	}
	return matches, nil
}

// QueryContent performs a filtered cosine similarity search over chunks.
func (s *QdrantStore) QueryContent(ctx context.Context, queryText string, k int, filter *ContentFilter) ([]ContentMatch, error) {
	vec, err := s.embedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	limit := uint64(max(k, 1)) //nolint:gosec // k is a small positive result count
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.ContentCollection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		Filter:         buildContentFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: content query failed: %w", err)
	}

	matches := make([]ContentMatch, 0, len(results))
	for _, r := range results {
		m := ContentMatch{
			Text:     r.Payload[fieldText].GetStringValue(),
			CourseID: r.Payload[fieldCourseID].GetStringValue(),
			Score:    r.Score,
		}
		if v, ok := r.Payload[fieldLessonNum]; ok {
			n := int(v.GetIntegerValue())
			m.LessonNumber = &n
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// buildContentFilter translates a ContentFilter into qdrant match
// conditions. Returns nil for an unconstrained search.
func buildContentFilter(filter *ContentFilter) *qdrant.Filter {
	if filter == nil {
		return nil
	}

	var must []*qdrant.Condition
	if filter.CourseID != "" {
		must = append(must, qdrant.NewMatch(fieldCourseID, filter.CourseID))
	}
	if filter.LessonNumber != nil {
		must = append(must, qdrant.NewMatchInt(fieldLessonNum, int64(*filter.LessonNumber)))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// GetCourse retrieves the full stored course record by its exact ID.
// Returns nil (without error) when the course is not in the catalog.
func (s *QdrantStore) GetCourse(ctx context.Context, courseID string) (*course.Course, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.CatalogCollection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(course.PointID(courseID))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: catalog lookup failed: %w", err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	p := points[0].Payload
	c := &course.Course{
		ID:         p[fieldCourseID].GetStringValue(),
		Title:      p[fieldTitle].GetStringValue(),
		Instructor: p[fieldInstructor].GetStringValue(),
		Link:       p[fieldLink].GetStringValue(),
	}
	if raw := p[fieldLessons].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Lessons); err != nil {
			return nil, fmt.Errorf("vectorstore: corrupt lesson payload for %q: %w", courseID, err)
		}
	}
	return c, nil
}

// CourseCount returns the exact number of catalog entries.
func (s *QdrantStore) CourseCount(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.CatalogCollection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("vectorstore: catalog count failed: %w", err)
	}
	return n, nil
}

// CourseTitles lists the titles of every catalog entry, sorted. Backed by a
// payload-only scroll so no vectors cross the wire.
func (s *QdrantStore) CourseTitles(ctx context.Context) ([]string, error) {
	var titles []string
	var offset *qdrant.PointId
	for {
		resp, err := s.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.CatalogCollection,
			Limit:          qdrant.PtrOf(uint32(256)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude(fieldTitle),
		})
		if err != nil {
			return nil, fmt.Errorf("vectorstore: catalog scroll failed: %w", err)
		}
		for _, p := range resp.GetResult() {
			titles = append(titles, p.Payload[fieldTitle].GetStringValue())
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	sort.Strings(titles)
	return titles, nil
}

// embedQuery embeds a single query string.
func (s *QdrantStore) embedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("vectorstore: embedder returned no vector for query")
	}
	return vectors[0], nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
