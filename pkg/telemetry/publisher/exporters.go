package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/contract-ace/smartace/pkg/telemetry"
)

// HTTPExporter exports metrics by making an HTTP request. The body is
// zstd-compressed before it leaves the process, matching the teacher's use
// of the same package for data-at-rest compression elsewhere in the repo.
type HTTPExporter struct {
	url    string
	apiKey string
	enc    *zstd.Encoder
}

// NewHTTPExporter creates an HTTPExporter. apiKey, when non-empty, is sent
// as the Api-Key header the collector checks for authorization.
func NewHTTPExporter(endpoint, apiKey string) (*HTTPExporter, error) {
	if endpoint == "" {
		return nil, errors.New("empty url")
	}

	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid url: %s", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %s", err)
	}

	return &HTTPExporter{
		url:    endpoint,
		apiKey: apiKey,
		enc:    enc,
	}, nil
}

// Export exports metrics by HTTP.
func (e *HTTPExporter) Export(ctx context.Context, metrics []telemetry.Metric, nodeID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"node_id": nodeID,
		"metrics": metrics,
	})
	if err != nil {
		return fmt.Errorf("marshal metrics: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.url, bytes.NewReader(e.enc.EncodeAll(body, nil)))
	if err != nil {
		return fmt.Errorf("creating request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "zstd")
	if e.apiKey != "" {
		req.Header.Set("Api-Key", e.apiKey)
	}

	client := http.DefaultClient
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting metrics: %s", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("status code: %d", resp.StatusCode)
	}

	return nil
}

// bigQueryRow is the flattened row shape inserted into the metrics table:
// Payload carries the metric-type-specific JSON, left for downstream SQL to
// parse per Type rather than modeled as one wide row with mostly-null columns.
type bigQueryRow struct {
	NodeID    string
	Version   int
	Timestamp string
	Type      int
	Payload   string
}

// Save implements bigquery.ValueSaver.
func (r *bigQueryRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"node_id":   r.NodeID,
		"version":   r.Version,
		"timestamp": r.Timestamp,
		"type":      r.Type,
		"payload":   r.Payload,
	}, bigquery.NoDedupeID, nil
}

// BigQueryExporter exports metrics directly into a BigQuery table, bypassing
// the HTTP collector for operators who run their own warehouse.
type BigQueryExporter struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryExporter creates a BigQueryExporter for the given project, dataset and table.
func NewBigQueryExporter(ctx context.Context, projectID, dataset, table string) (*BigQueryExporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %s", err)
	}

	return &BigQueryExporter{
		client:  client,
		dataset: dataset,
		table:   table,
	}, nil
}

// Export inserts metrics as rows into the configured BigQuery table.
func (e *BigQueryExporter) Export(ctx context.Context, metrics []telemetry.Metric, nodeID string) error {
	rows := make([]*bigQueryRow, len(metrics))
	for i, m := range metrics {
		payload, err := m.Serialize()
		if err != nil {
			return fmt.Errorf("serialize metric: %s", err)
		}
		rows[i] = &bigQueryRow{
			NodeID:    nodeID,
			Version:   m.Version,
			Timestamp: strings.TrimSuffix(m.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), "Z"),
			Type:      int(m.Type),
			Payload:   string(payload),
		}
	}

	inserter := e.client.Dataset(e.dataset).Table(e.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("inserting rows: %s", err)
	}

	return nil
}

// Close releases the underlying BigQuery client.
func (e *BigQueryExporter) Close() error {
	return e.client.Close()
}
