package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

const usageTable = "ai_usage"

// UsageStore keeps daily usage counters in BigQuery.
//
// BigQuery serialises concurrent DML against one table, so a MERGE that
// loses a conflict fails instead of dropping an update; callers see the
// error rather than a miscount.
type UsageStore struct {
	client  *bigquery.Client
	dataset string
}

// NewUsageStore creates a usage store with its own client.
func NewUsageStore(ctx context.Context, projectID, datasetID string) (*UsageStore, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewUsageStore: creating client: %w", err)
	}
	return NewUsageStoreWithClient(client, datasetID), nil
}

// NewUsageStoreWithClient creates a usage store over a shared client.
func NewUsageStoreWithClient(client *bigquery.Client, datasetID string) *UsageStore {
	return &UsageStore{client: client, dataset: datasetID}
}

// Close closes the BigQuery client connection.
func (s *UsageStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Count returns the counter for (userID, day), 0 when no row exists.
func (s *UsageStore) Count(ctx context.Context, userID string, day civil.Date) (int64, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT count
		FROM %s.%s
		WHERE user_id = @user_id AND usage_date = @usage_date
		LIMIT 1
	`, s.dataset, usageTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "usage_date", Value: day},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("UsageStore.Count: reading query: %w", err)
	}

	var row struct {
		Count int64 `bigquery:"count"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("UsageStore.Count: iterating: %w", err)
	}
	return row.Count, nil
}

// Increment merges +1 into the counter. BigQuery DML returns no rows, so the
// result is read back after the MERGE: it is at least this call's value and
// may also include increments committed concurrently by other callers.
func (s *UsageStore) Increment(ctx context.Context, userID string, day civil.Date) (int64, error) {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s.%s T
		USING (SELECT @user_id AS user_id, @usage_date AS usage_date) S
		ON T.user_id = S.user_id AND T.usage_date = S.usage_date
		WHEN MATCHED THEN
		  UPDATE SET count = T.count + 1, updated_at = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
		  INSERT (user_id, usage_date, count, updated_at)
		  VALUES (S.user_id, S.usage_date, 1, CURRENT_TIMESTAMP())
	`, s.dataset, usageTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "usage_date", Value: day},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("UsageStore.Increment: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("UsageStore.Increment: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("UsageStore.Increment: job error: %w", err)
	}

	return s.Count(ctx, userID, day)
}
