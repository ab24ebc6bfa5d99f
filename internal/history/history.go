// Package history persists cleanup outcomes to DynamoDB so detection runs
// can report when orphaned assignments were last cleaned up.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/statusops/idc-monitor/internal/models"
)

// recordPartition is the fixed partition key for cleanup records; the table
// holds one record type, ordered by the time-prefixed sort key.
const recordPartition = "CLEANUP"

// cleanupRecord is the stored shape of one cleanup run.
type cleanupRecord struct {
	RecordType         string   `dynamodbav:"record_type"`
	StartedAtRecordID  string   `dynamodbav:"started_at_record_id"`
	RecordID           string   `dynamodbav:"record_id"`
	StartedAt          string   `dynamodbav:"started_at"`
	TotalAttempted     int      `dynamodbav:"total_attempted"`
	SuccessfulCleanups int      `dynamodbav:"successful_cleanups"`
	FailedCleanups     int      `dynamodbav:"failed_cleanups"`
	CleanupErrors      []string `dynamodbav:"cleanup_errors,omitempty"`
	CleanedAssignments []string `dynamodbav:"cleaned_assignments,omitempty"`
	DurationSeconds    float64  `dynamodbav:"duration_seconds"`
}

// Store provides DynamoDB-backed cleanup history.
type Store struct {
	db    *dynamodb.Client
	table string
}

// NewStore creates a cleanup history store over the given table.
func NewStore(db *dynamodb.Client, table string) *Store {
	return &Store{db: db, table: table}
}

// RecordCleanup stores the outcome of one cleanup run with an
// auto-generated record ID and a time-prefixed sort key.
func (s *Store) RecordCleanup(ctx context.Context, result models.CleanupResult) error {
	recordID := uuid.New().String()
	startedAt := result.StartedAt.UTC().Format(time.RFC3339)

	record := cleanupRecord{
		RecordType:         recordPartition,
		StartedAtRecordID:  startedAt + "#" + recordID,
		RecordID:           recordID,
		StartedAt:          startedAt,
		TotalAttempted:     result.TotalAttempted,
		SuccessfulCleanups: result.SuccessfulCleanups,
		FailedCleanups:     result.FailedCleanups,
		CleanupErrors:      result.CleanupErrors,
		CleanedAssignments: result.CleanedAssignments,
		DurationSeconds:    result.DurationSeconds,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("RecordCleanup marshal: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("RecordCleanup: %w", err)
	}

	slog.Info("cleanup record stored",
		"record_id", recordID,
		"attempted", result.TotalAttempted,
		"successful", result.SuccessfulCleanups,
	)
	return nil
}

// RecentCleanups returns up to limit cleanup results, most recent first.
func (s *Store) RecentCleanups(ctx context.Context, limit int) ([]models.CleanupResult, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: aws.String("record_type = :rt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rt": &types.AttributeValueMemberS{Value: recordPartition},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("RecentCleanups: %w", err)
	}

	var records []cleanupRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("RecentCleanups unmarshal: %w", err)
	}

	results := make([]models.CleanupResult, 0, len(records))
	for _, r := range records {
		startedAt, err := time.Parse(time.RFC3339, r.StartedAt)
		if err != nil {
			slog.Warn("skipping cleanup record with bad timestamp",
				"record_id", r.RecordID,
				"started_at", r.StartedAt,
			)
			continue
		}
		results = append(results, models.CleanupResult{
			TotalAttempted:     r.TotalAttempted,
			SuccessfulCleanups: r.SuccessfulCleanups,
			FailedCleanups:     r.FailedCleanups,
			CleanupErrors:      r.CleanupErrors,
			CleanedAssignments: r.CleanedAssignments,
			DurationSeconds:    r.DurationSeconds,
			StartedAt:          startedAt,
		})
	}
	return results, nil
}
