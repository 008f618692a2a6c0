package db

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/callsignal/internal/aggregation"
	"github.com/spacesedan/callsignal/internal/models"
)

const (
	RECORDS_TABLE_NAME = "Sentiment_Details"
	SUMMARY_TABLE_NAME = "Sentiment_Summary"

	RECORD_PARTITION_KEY = "pk"
	RECORD_SORT_KEY      = "seq"

	maxBatchSize = 25
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps scored records in a table partitioned by company
// period and writes one summary item per company period.
type DynamoStore struct {
	client        DynamoAPI
	recordsTable  string
	summaryTable  string
	retryBackoff  time.Duration
	maxRetryCount int
}

func NewDynamoStore(client DynamoAPI, recordsTable, summaryTable string) *DynamoStore {
	if recordsTable == "" {
		recordsTable = RECORDS_TABLE_NAME
	}
	if summaryTable == "" {
		summaryTable = SUMMARY_TABLE_NAME
	}
	return &DynamoStore{
		client:        client,
		recordsTable:  recordsTable,
		summaryTable:  summaryTable,
		retryBackoff:  500 * time.Millisecond,
		maxRetryCount: 3,
	}
}

func partitionKey(company, period string) string {
	return company + "#" + period
}

type recordItem struct {
	PK          string `dynamodbav:"pk"`
	Seq         int    `dynamodbav:"seq"`
	YahooTicker string `dynamodbav:"YahooTicker"`
	Period      string `dynamodbav:"Period"`
	models.WeightedRecord
}

// PutRecords replaces the records of one company period. Items are keyed
// by position, so rows past the new length are deleted afterwards.
func (s *DynamoStore) PutRecords(ctx context.Context, company, period string, records []models.WeightedRecord) error {
	pk := partitionKey(company, period)

	for i := 0; i < len(records); i += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := min(i+maxBatchSize, len(records))
		writeRequests := make([]types.WriteRequest, 0, end-i)
		for seq := i; seq < end; seq++ {
			item, err := attributevalue.MarshalMap(recordItem{
				PK:             pk,
				Seq:            seq,
				YahooTicker:    company,
				Period:         period,
				WeightedRecord: records[seq],
			})
			if err != nil {
				return fmt.Errorf("[DynamoDB] Failed to marshal record %d: %w", seq, err)
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.batchWrite(ctx, writeRequests); err != nil {
			return err
		}
	}

	removed, err := s.deleteFrom(ctx, pk, len(records))
	if err != nil {
		return err
	}

	slog.Info("[DynamoDB] Successfully stored scored records",
		slog.String("company", company),
		slog.String("period", period),
		slog.Int("count", len(records)),
		slog.Int("removed", removed))
	return nil
}

// deleteFrom removes every item of the partition whose seq is at least
// from and returns how many were deleted.
func (s *DynamoStore) deleteFrom(ctx context.Context, pk string, from int) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.recordsTable),
		KeyConditionExpression: aws.String("#pk = :pk AND #seq >= :from"),
		ProjectionExpression:   aws.String("#pk, #seq"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  RECORD_PARTITION_KEY,
			"#seq": RECORD_SORT_KEY,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: pk},
			":from": &types.AttributeValueMemberN{Value: strconv.Itoa(from)},
		},
	}

	var deletes []types.WriteRequest
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("[DynamoDB] Failed to list stale records: %w", err)
		}
		for _, item := range out.Items {
			deletes = append(deletes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					RECORD_PARTITION_KEY: item[RECORD_PARTITION_KEY],
					RECORD_SORT_KEY:      item[RECORD_SORT_KEY],
				}},
			})
		}
	}

	for i := 0; i < len(deletes); i += maxBatchSize {
		end := min(i+maxBatchSize, len(deletes))
		if err := s.batchWrite(ctx, deletes[i:end]); err != nil {
			return i, err
		}
	}
	return len(deletes), nil
}

func (s *DynamoStore) batchWrite(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.recordsTable: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write records: %w", err)
	}

	retryCount := 0
	backoff := s.retryBackoff
	for len(out.UnprocessedItems) > 0 && retryCount < s.maxRetryCount {
		time.Sleep(backoff)
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed records...",
			slog.Int("attempt", retryCount+1),
			slog.Int("remaining", len(out.UnprocessedItems[s.recordsTable])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Retry error %w", err)
		}
		retryCount++
	}

	if len(out.UnprocessedItems) > 0 {
		return fmt.Errorf("[DynamoDB] %d records not written after retries", len(out.UnprocessedItems[s.recordsTable]))
	}
	return nil
}

// QueryAggregates reads one company period partition filtered to a
// category and aggregates it client side.
func (s *DynamoStore) QueryAggregates(ctx context.Context, filter aggregation.Filter) (models.CategorySummary, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.recordsTable),
		KeyConditionExpression: aws.String("#pk = :pk"),
		FilterExpression:       aws.String("#category = :category"),
		ExpressionAttributeNames: map[string]string{
			"#pk":       RECORD_PARTITION_KEY,
			"#category": "Category",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: partitionKey(filter.Company, filter.Period)},
			":category": &types.AttributeValueMemberS{Value: filter.Category},
		},
	}

	var records []models.WeightedRecord
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return models.CategorySummary{}, fmt.Errorf("[DynamoDB] Query for %s failed: %w", filter.Category, err)
		}

		var page []models.WeightedRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal record page", slog.String("error", err.Error()))
			return models.CategorySummary{}, err
		}
		records = append(records, page...)
	}

	return AggregateRecords(filter.Category, records), nil
}

// UpsertSummary overwrites the summary item keyed by ticker and period.
func (s *DynamoStore) UpsertSummary(ctx context.Context, key models.SummaryKey, summary models.CompanyQuarterSummary) error {
	summary.SummaryKey = key
	item, err := attributevalue.MarshalMap(summary.Fields())
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to marshal summary: %w", err)
	}
	item["updated_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.summaryTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to upsert summary: %w", err)
	}
	return nil
}
