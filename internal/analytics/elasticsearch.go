// Package analytics indexes workflow tracking events in Elasticsearch.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/common/errors"
	"github.com/kyleinatl/CCOS-Charity-Guild-sub000/internal/models"
)

const DefaultIndex = "automation-events"

const indexMapping = `{
  "mappings": {
    "properties": {
      "workflow":       {"type": "keyword"},
      "memberId":       {"type": "keyword"},
      "success":        {"type": "boolean"},
      "actions":        {"type": "integer"},
      "scheduledTasks": {"type": "integer"},
      "errors":         {"type": "integer"},
      "attributes":     {"type": "object", "enabled": false},
      "timestamp":      {"type": "date"}
    }
  }
}`

// Sink implements workflow.AnalyticsSink.
type Sink struct {
	es    *elasticsearch.Client
	index string
}

func NewSink(es *elasticsearch.Client, index string) *Sink {
	if index == "" {
		index = DefaultIndex
	}
	return &Sink{es: es, index: index}
}

// EnsureIndex creates the index with its mapping. An existing index is left
// untouched.
func (s *Sink) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Create(
		s.index,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return errors.NewAnalyticsError(fmt.Errorf("create index %s: %s", s.index, res.Status()))
	}
	return nil
}

func (s *Sink) Track(ctx context.Context, event models.TrackingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.NewAnalyticsError(err)
	}

	res, err := s.es.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(uuid.NewString()),
	)
	if err != nil {
		return errors.NewAnalyticsError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewAnalyticsError(fmt.Errorf("index tracking event: %s", res.Status()))
	}
	return nil
}

// WorkflowCounts returns how many tracked runs of workflow succeeded and
// failed.
func (s *Sink) WorkflowCounts(ctx context.Context, workflow string) (succeeded, failed int, err error) {
	query := map[string]interface{}{
		"size":  0,
		"query": map[string]interface{}{"term": map[string]interface{}{"workflow": workflow}},
		"aggs": map[string]interface{}{
			"outcome": map[string]interface{}{"terms": map[string]interface{}{"field": "success"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return 0, 0, errors.NewAnalyticsError(err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return 0, 0, errors.NewAnalyticsError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, 0, errors.NewAnalyticsError(fmt.Errorf("search %s: %s", s.index, res.Status()))
	}

	var parsed struct {
		Aggregations struct {
			Outcome struct {
				Buckets []struct {
					KeyAsString string `json:"key_as_string"`
					DocCount    int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"outcome"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, 0, errors.NewAnalyticsError(err)
	}
	for _, b := range parsed.Aggregations.Outcome.Buckets {
		if b.KeyAsString == "true" {
			succeeded = b.DocCount
		} else {
			failed = b.DocCount
		}
	}
	return succeeded, failed, nil
}
