package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/elasticsearch"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// ElasticsearchAdapter implements SearchBackend against the Elasticsearch
// REST API
type ElasticsearchAdapter struct {
	client *elasticsearch.Client
}

// NewElasticsearchAdapter creates a new search backend adapter
func NewElasticsearchAdapter(client *elasticsearch.Client) providers.SearchBackend {
	return &ElasticsearchAdapter{client: client}
}

// CreateIndex creates a physical index with the given mapping and settings
func (a *ElasticsearchAdapter) CreateIndex(ctx context.Context, name string, mapping, settings map[string]interface{}) error {
	body := map[string]interface{}{}
	if len(mapping) > 0 {
		body["mappings"] = mapping
	}
	if len(settings) > 0 {
		body["settings"] = settings
	}

	reader, err := encodeBody(body)
	if err != nil {
		return err
	}

	es := a.client.Client()
	res, err := es.Indices.Create(name,
		es.Indices.Create.WithBody(reader),
		es.Indices.Create.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to create index")
}

// DeleteIndex removes a physical index
func (a *ElasticsearchAdapter) DeleteIndex(ctx context.Context, name string) error {
	es := a.client.Client()
	res, err := es.Indices.Delete([]string{name},
		es.Indices.Delete.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to delete index")
}

// PutAlias points an alias at an index
func (a *ElasticsearchAdapter) PutAlias(ctx context.Context, index, alias string) error {
	es := a.client.Client()
	res, err := es.Indices.PutAlias([]string{index}, alias,
		es.Indices.PutAlias.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to put alias")
}

// UpdateAliases swaps an alias from one index to another in a single atomic
// actions request
func (a *ElasticsearchAdapter) UpdateAliases(ctx context.Context, alias, removeIndex, addIndex string) error {
	body := map[string]interface{}{
		"actions": []map[string]interface{}{
			{"remove": map[string]interface{}{"index": removeIndex, "alias": alias}},
			{"add": map[string]interface{}{"index": addIndex, "alias": alias}},
		},
	}

	reader, err := encodeBody(body)
	if err != nil {
		return err
	}

	es := a.client.Client()
	res, err := es.Indices.UpdateAliases(reader,
		es.Indices.UpdateAliases.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to update aliases")
}

// ResolveAlias returns the physical index an alias currently points at
func (a *ElasticsearchAdapter) ResolveAlias(ctx context.Context, alias string) (string, error) {
	es := a.client.Client()
	res, err := es.Indices.GetAlias(
		es.Indices.GetAlias.WithName(alias),
		es.Indices.GetAlias.WithContext(ctx),
	)
	if err != nil {
		return "", apperrors.NewUnavailableError("failed to resolve alias", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("alias %s not found", alias))
	}
	if res.IsError() {
		return "", responseError(res, "failed to resolve alias")
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", apperrors.NewInternalError("failed to decode alias response", err)
	}
	for index := range payload {
		return index, nil
	}
	return "", apperrors.NewNotFoundError(fmt.Sprintf("alias %s not found", alias))
}

// Bulk executes a batch of document operations. Per-document failures are
// reported in the result, not as an error.
func (a *ElasticsearchAdapter) Bulk(ctx context.Context, ops []providers.BulkOp) (*providers.BulkResult, error) {
	if len(ops) == 0 {
		return &providers.BulkResult{}, nil
	}

	var buf bytes.Buffer
	for _, op := range ops {
		meta := map[string]map[string]string{
			string(op.Action): {"_index": op.Index, "_id": op.ID},
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return nil, apperrors.NewInternalError("failed to encode bulk action", err)
		}
		switch op.Action {
		case providers.BulkActionIndex:
			if err := json.NewEncoder(&buf).Encode(op.Doc); err != nil {
				return nil, apperrors.NewInternalError("failed to encode bulk document", err)
			}
		case providers.BulkActionUpdate:
			if err := json.NewEncoder(&buf).Encode(map[string]interface{}{"doc": op.Doc}); err != nil {
				return nil, apperrors.NewInternalError("failed to encode bulk update", err)
			}
		}
	}

	es := a.client.Client()
	res, err := es.Bulk(bytes.NewReader(buf.Bytes()),
		es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.NewUnavailableError("bulk request failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, "bulk request rejected")
	}

	var payload struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewInternalError("failed to decode bulk response", err)
	}

	result := &providers.BulkResult{}
	for _, item := range payload.Items {
		for _, detail := range item {
			if detail.Error != nil || detail.Status >= 400 {
				result.Failed++
				reason := ""
				if detail.Error != nil {
					reason = detail.Error.Reason
				}
				result.Errors = append(result.Errors, providers.BulkItemError{
					ID:     detail.ID,
					Status: detail.Status,
					Reason: reason,
				})
			} else {
				result.Indexed++
			}
		}
	}
	return result, nil
}

// IndexDoc indexes a single document, replacing any existing version
func (a *ElasticsearchAdapter) IndexDoc(ctx context.Context, index, id string, doc map[string]interface{}) error {
	reader, err := encodeBody(doc)
	if err != nil {
		return err
	}

	es := a.client.Client()
	res, err := es.Index(index, reader,
		es.Index.WithDocumentID(id),
		es.Index.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to index document")
}

// UpdateDoc applies a partial update to an existing document
func (a *ElasticsearchAdapter) UpdateDoc(ctx context.Context, index, id string, doc map[string]interface{}) error {
	reader, err := encodeBody(map[string]interface{}{"doc": doc})
	if err != nil {
		return err
	}

	es := a.client.Client()
	res, err := es.Update(index, id, reader,
		es.Update.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to update document")
}

// DeleteDoc removes a document from an index
func (a *ElasticsearchAdapter) DeleteDoc(ctx context.Context, index, id string) error {
	es := a.client.Client()
	res, err := es.Delete(index, id,
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return apperrors.NewUnavailableError("failed to delete document", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError(fmt.Sprintf("document %s not found", id))
	}
	if res.IsError() {
		return responseError(res, "failed to delete document")
	}
	return nil
}

// Count returns the backend's document count for an index or alias
func (a *ElasticsearchAdapter) Count(ctx context.Context, index string) (int64, error) {
	es := a.client.Client()
	res, err := es.Count(
		es.Count.WithIndex(index),
		es.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, apperrors.NewUnavailableError("count request failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, responseError(res, "count request rejected")
	}

	var payload struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return 0, apperrors.NewInternalError("failed to decode count response", err)
	}
	return payload.Count, nil
}

// Search executes a query against one or more indices
func (a *ElasticsearchAdapter) Search(ctx context.Context, indices []string, query map[string]interface{}) (*providers.BackendSearchResult, error) {
	reader, err := encodeBody(query)
	if err != nil {
		return nil, err
	}

	es := a.client.Client()
	res, err := es.Search(
		es.Search.WithIndex(indices...),
		es.Search.WithBody(reader),
		es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.NewUnavailableError("search request failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res, "search request rejected")
	}

	var payload struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID        string                 `json:"_id"`
				Index     string                 `json:"_index"`
				Score     float64                `json:"_score"`
				Source    map[string]interface{} `json:"_source"`
				Highlight map[string][]string    `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]struct {
			Buckets []struct {
				Key      interface{} `json:"key"`
				DocCount int64       `json:"doc_count"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewInternalError("failed to decode search response", err)
	}

	result := &providers.BackendSearchResult{
		Total:  payload.Hits.Total.Value,
		TookMs: payload.Took,
	}
	for _, hit := range payload.Hits.Hits {
		result.Hits = append(result.Hits, providers.SearchHit{
			ID:         hit.ID,
			Index:      hit.Index,
			Score:      hit.Score,
			Source:     hit.Source,
			Highlights: hit.Highlight,
		})
	}
	if len(payload.Aggregations) > 0 {
		result.Aggregations = make(map[string][]providers.AggregationBucket, len(payload.Aggregations))
		for name, agg := range payload.Aggregations {
			buckets := make([]providers.AggregationBucket, 0, len(agg.Buckets))
			for _, bucket := range agg.Buckets {
				buckets = append(buckets, providers.AggregationBucket{
					Key:   fmt.Sprintf("%v", bucket.Key),
					Count: bucket.DocCount,
				})
			}
			result.Aggregations[name] = buckets
		}
	}
	return result, nil
}

// ForceMerge compacts index segments after heavy write activity
func (a *ElasticsearchAdapter) ForceMerge(ctx context.Context, index string) error {
	es := a.client.Client()
	res, err := es.Indices.Forcemerge(
		es.Indices.Forcemerge.WithIndex(index),
		es.Indices.Forcemerge.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to force merge index")
}

// ClearCache invalidates backend request caches for an index
func (a *ElasticsearchAdapter) ClearCache(ctx context.Context, index string) error {
	es := a.client.Client()
	res, err := es.Indices.ClearCache(
		es.Indices.ClearCache.WithIndex(index),
		es.Indices.ClearCache.WithContext(ctx),
	)
	return a.checkResponse(res, err, "failed to clear index cache")
}

// StartReindex kicks off a server-side copy from src to dst and returns the
// backend task ID without waiting for completion
func (a *ElasticsearchAdapter) StartReindex(ctx context.Context, src, dst string) (string, error) {
	body := map[string]interface{}{
		"source": map[string]interface{}{"index": src},
		"dest":   map[string]interface{}{"index": dst},
	}
	reader, err := encodeBody(body)
	if err != nil {
		return "", err
	}

	es := a.client.Client()
	res, err := es.Reindex(reader,
		es.Reindex.WithWaitForCompletion(false),
		es.Reindex.WithContext(ctx),
	)
	if err != nil {
		return "", apperrors.NewUnavailableError("reindex request failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", responseError(res, "reindex request rejected")
	}

	var payload struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", apperrors.NewInternalError("failed to decode reindex response", err)
	}
	if payload.Task == "" {
		return "", apperrors.NewInternalError("reindex response missing task id", nil)
	}
	return payload.Task, nil
}

// GetTaskStatus polls an async task. A 404 is reported through
// TaskStatus.NotFound so callers can distinguish expiry from failure.
func (a *ElasticsearchAdapter) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskStatus, error) {
	es := a.client.Client()
	res, err := es.Tasks.Get(taskID,
		es.Tasks.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, apperrors.NewUnavailableError("task status request failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &providers.TaskStatus{NotFound: true}, nil
	}
	if res.IsError() {
		return nil, responseError(res, "task status request rejected")
	}

	var payload struct {
		Completed bool `json:"completed"`
		Task      struct {
			Status struct {
				Total   int64 `json:"total"`
				Created int64 `json:"created"`
			} `json:"status"`
		} `json:"task"`
		Response struct {
			Failures []struct {
				ID    string `json:"id"`
				Cause struct {
					Reason string `json:"reason"`
				} `json:"cause"`
			} `json:"failures"`
		} `json:"response"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewInternalError("failed to decode task status", err)
	}

	status := &providers.TaskStatus{
		Completed: payload.Completed,
		Total:     payload.Task.Status.Total,
		Created:   payload.Task.Status.Created,
	}
	for _, f := range payload.Response.Failures {
		reason := f.Cause.Reason
		if f.ID != "" {
			reason = fmt.Sprintf("%s: %s", f.ID, reason)
		}
		status.Failures = append(status.Failures, reason)
	}
	return status, nil
}

func (a *ElasticsearchAdapter) checkResponse(res *esapi.Response, err error, message string) error {
	if err != nil {
		return apperrors.NewUnavailableError(message, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res, message)
	}
	io.Copy(io.Discard, res.Body)
	return nil
}

func responseError(res *esapi.Response, message string) error {
	body, _ := io.ReadAll(res.Body)
	detail := strings.TrimSpace(string(body))
	return apperrors.NewExternalError(
		fmt.Sprintf("%s [%s]", message, res.Status()),
		fmt.Errorf("elasticsearch: %s", detail),
	)
}

func encodeBody(body map[string]interface{}) (*bytes.Reader, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode request body", err)
	}
	return bytes.NewReader(data), nil
}
