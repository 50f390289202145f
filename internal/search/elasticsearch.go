package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/zfogg/vidshare/internal/telemetry"
)

// ESIndex keeps published videos in an Elasticsearch index.
type ESIndex struct {
	es    *elasticsearch.Client
	index string
}

// NewESIndex connects to url. Requests are traced through otelhttp.
func NewESIndex(url, index string) (*ESIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Transport: telemetry.NewTransport(nil),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ESIndex{es: es, index: index}, nil
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (e *ESIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(videoMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("creating index", res.Status(), res.Body)
	}
	return nil
}

func (e *ESIndex) IndexVideo(ctx context.Context, doc VideoDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal video document: %w", err)
	}
	res, err := e.es.Index(e.index, bytes.NewReader(body),
		e.es.Index.WithDocumentID(doc.ID),
		e.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index video: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("indexing video", res.Status(), res.Body)
	}
	return nil
}

func (e *ESIndex) DeleteVideo(ctx context.Context, id string) error {
	res, err := e.es.Delete(e.index, id, e.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("deleting video", res.Status(), res.Body)
	}
	return nil
}

func (e *ESIndex) SearchVideos(ctx context.Context, q Query) (*Result, error) {
	body, err := json.Marshal(buildVideoQuery(q))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("searching videos", res.Status(), res.Body)
	}

	var resp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return &Result{IDs: ids, Total: resp.Hits.Total.Value}, nil
}

// Ping checks the cluster is reachable.
func (e *ESIndex) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

func buildVideoQuery(q Query) map[string]interface{} {
	// Documents indexed before subscribers_only existed lack the field, so
	// public means "not true" rather than "false".
	visible := []interface{}{
		map[string]interface{}{"bool": map[string]interface{}{
			"must_not": map[string]interface{}{"term": map[string]interface{}{"subscribers_only": true}},
		}},
	}
	if len(q.Channels) > 0 {
		visible = append(visible, map[string]interface{}{"terms": map[string]interface{}{"owner_id": q.Channels}})
	}

	return map[string]interface{}{
		"from": q.Offset,
		"size": q.Limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     q.Text,
						"fields":    []string{"title^3", "tags^2", "owner_username^1.5", "description"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"bool": map[string]interface{}{"should": visible, "minimum_should_match": 1},
				},
			},
		},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"views": map[string]interface{}{"order": "desc"}},
		},
	}
}

func videoMapping() map[string]interface{} {
	text := map[string]interface{}{"type": "text", "analyzer": "standard"}
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":               keyword,
				"title":            text,
				"description":      text,
				"tags":             map[string]interface{}{"type": "text", "fields": map[string]interface{}{"keyword": keyword}},
				"owner_id":         keyword,
				"owner_username":   map[string]interface{}{"type": "text", "fields": map[string]interface{}{"keyword": keyword}},
				"subscribers_only": map[string]interface{}{"type": "boolean"},
				"views":            map[string]interface{}{"type": "long"},
				"likes_count":      map[string]interface{}{"type": "long"},
				"created_at":       map[string]interface{}{"type": "date"},
			},
		},
	}
}

func responseError(op, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error %s [%s]", op, status)
	}
	return fmt.Errorf("error %s: [%s] %v", op, status, errResp["error"])
}

var _ Index = (*ESIndex)(nil)
