// QdrantManager implements Manager (§4.9) backed by a real Qdrant instance
// via the official gRPC client. Grounded on the teacher's single-collection
// qdrant.go (client construction, CollectionExists/CreateCollection
// sequencing), generalized to the full payload schema and filter
// composition in spec §3/§4.9/§6.
package rag

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

const payloadContentTypeKey = "content_type"

// requiredPayloadKeys (§6): every point payload carries at least these.
// Metadata keys beyond this set are carried through verbatim.
var requiredPayloadKeys = map[string]bool{
	"project_id": true, "source_type": true, "source_name": true,
	"document_id": true, "chunk_index": true, "content": true,
	"url": true, "title": true,
}

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantManager implements Manager.
type QdrantManager struct {
	client *qdrant.Client
}

// NewQdrantManager creates a new QdrantManager. The target collection is
// not created here — call InitCollection explicitly, matching §4.9's
// operation list.
func NewQdrantManager(cfg QdrantConfig) (*QdrantManager, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: qdrant: create client: %w", err)
	}
	return &QdrantManager{client: client}, nil
}

// Ping calls Qdrant's native HealthCheck RPC, satisfying the diagnostics
// package's Pinger interface for GET /readyz.
func (m *QdrantManager) Ping(ctx context.Context) error {
	_, err := m.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("rag: qdrant: health check failed: %w", err)
	}
	return nil
}

// NewQdrantManagerFromURL parses a `global.qdrant.url` value (e.g.
// "http://localhost:6334" or "https://xyz.qdrant.io:6334") into a
// QdrantConfig and constructs a Manager. Grounded on the same host/port
// split every §6 CLI command and the MCP server binary need, centralized
// here so neither duplicates URL parsing.
func NewQdrantManagerFromURL(rawURL, apiKey string) (*QdrantManager, error) {
	host, port, useTLS, err := parseQdrantURL(rawURL)
	if err != nil {
		return nil, err
	}
	return NewQdrantManager(QdrantConfig{Host: host, Port: port, APIKey: apiKey, UseTLS: useTLS})
}

// parseQdrantURL splits a `global.qdrant.url` value into the host/port/TLS
// triple QdrantConfig needs, isolated from client construction so it can be
// tested without a live Qdrant instance.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	if rawURL == "" {
		rawURL = "http://localhost:6334"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false, fmt.Errorf("rag: qdrant: invalid url %q: %w", rawURL, err)
	}

	host = u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port = 6334
	if p := u.Port(); p != "" {
		if parsed, perr := strconv.Atoi(p); perr == nil {
			port = parsed
		}
	}

	return host, port, u.Scheme == "https", nil
}

// InitCollection creates name if absent, or destroys and recreates it when
// force is true (§4.9).
func (m *QdrantManager) InitCollection(ctx context.Context, name string, vectorSize uint64, force bool) error {
	exists, err := m.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("rag: qdrant: check collection %q: %w", name, err)
	}

	if exists {
		if !force {
			return nil
		}
		if err := m.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("rag: qdrant: delete collection %q: %w", name, err)
		}
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("rag: qdrant: create collection %q: %w", name, err)
	}
	return nil
}

// Upsert writes records to collection in sub-batches of at most batchSize
// (default 64, matching §4.9's default). point_id is PointID(record.ProjectID,
// record.Chunk.ID), so re-ingesting unchanged content overwrites the same
// point rather than creating a duplicate.
func (m *QdrantManager) Upsert(ctx context.Context, collection string, records []model.VectorRecord, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 64
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		points := make([]*qdrant.PointStruct, 0, len(batch))
		for _, rec := range batch {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(rec.ProjectID, rec.Chunk.ID)),
				Vectors: qdrant.NewVectors(rec.Vector...),
				Payload: qdrant.NewValueMap(buildPayload(rec)),
			})
		}

		if _, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("rag: qdrant: upsert batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// buildPayload flattens a VectorRecord into the required payload keys (§6)
// plus any Document-inherited metadata the Chunk carries.
func buildPayload(rec model.VectorRecord) map[string]any {
	payload := map[string]any{
		"project_id":  rec.ProjectID,
		"source_type": string(rec.SourceType),
		"source_name": rec.SourceName,
		"document_id": rec.DocumentID,
		"chunk_index": int64(rec.Chunk.ChunkIndex),
		"chunk_total": int64(rec.Chunk.ChunkTotal),
		"content":     rec.Chunk.Content,
		"url":         rec.URL,
		"title":       rec.Title,
	}
	if rec.ContentType != "" {
		payload[payloadContentTypeKey] = rec.ContentType
	}
	for k, v := range rec.Chunk.Metadata {
		if !requiredPayloadKeys[k] {
			payload[k] = v
		}
	}
	return payload
}

// Search performs a cosine similarity search, clamping limit to [1, 100]
// (§4.9), and returns hits in descending similarity order.
func (m *QdrantManager) Search(ctx context.Context, collection string, queryVector []float32, limit int, filter SearchFilter) ([]SearchHit, error) {
	clamped := uint64(clampLimit(limit))

	results, err := m.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &clamped,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("rag: qdrant: search: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, hitFromPoint(r))
	}
	return hits, nil
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > 100:
		return 100
	default:
		return limit
	}
}

func hitFromPoint(r *qdrant.ScoredPoint) SearchHit {
	hit := SearchHit{
		Score:    r.GetScore(),
		PointID:  r.GetId().GetUuid(),
		Metadata: map[string]string{},
	}
	p := r.GetPayload()
	if p == nil {
		return hit
	}
	if v, ok := p["project_id"]; ok {
		hit.ProjectID = v.GetStringValue()
	}
	if v, ok := p["document_id"]; ok {
		hit.DocumentID = v.GetStringValue()
	}
	if v, ok := p["chunk_index"]; ok {
		hit.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := p["content"]; ok {
		hit.Content = v.GetStringValue()
	}
	if v, ok := p["source_type"]; ok {
		hit.SourceType = v.GetStringValue()
	}
	if v, ok := p["source_name"]; ok {
		hit.SourceName = v.GetStringValue()
	}
	if v, ok := p["url"]; ok {
		hit.URL = v.GetStringValue()
	}
	if v, ok := p["title"]; ok {
		hit.Title = v.GetStringValue()
	}
	for k, v := range p {
		if requiredPayloadKeys[k] {
			continue
		}
		hit.Metadata[k] = v.GetStringValue()
	}
	return hit
}

// DeleteByDocument removes every point for documentID within projectID
// (filtered delete, §4.9).
func (m *QdrantManager) DeleteByDocument(ctx context.Context, collection, documentID, projectID string) error {
	filter := buildFilter(SearchFilter{ProjectID: projectID, DocumentID: documentID})
	_, err := m.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("rag: qdrant: delete_by_document %q: %w", documentID, err)
	}
	return nil
}

// ancestorScrollBatch bounds each page of the AncestorTitles scan.
const ancestorScrollBatch = 256

// AncestorTitles scans every point matching filter and returns the set of
// titles that appear in any point's hierarchy_ancestors payload field.
// Used by hierarchy_search's has_children filter (§4.11), which must reflect
// the full stored set rather than just the ranked candidate window a
// similarity search returns.
func (m *QdrantManager) AncestorTitles(ctx context.Context, collection string, filter SearchFilter) (map[string]bool, error) {
	titles := map[string]bool{}
	qf := buildFilter(filter)

	var offset *qdrant.PointId
	for {
		points, next, err := m.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         qf,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(ancestorScrollBatch)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("rag: qdrant: ancestor_titles: %w", err)
		}

		for _, p := range points {
			v, ok := p.GetPayload()["hierarchy_ancestors"]
			if !ok || v.GetStringValue() == "" {
				continue
			}
			for _, anc := range strings.Split(v.GetStringValue(), "|") {
				if anc != "" {
					titles[anc] = true
				}
			}
		}

		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}

	return titles, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (m *QdrantManager) Close() error {
	return m.client.Close()
}
