package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/storage"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

//go:generate go run github.com/vektra/mockery/v3
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Tables names the DynamoDB tables and the visibility index used by Storage.
//
//	links:    PK code; GSI VisibilityIndex (visibility, createdAt)
//	aliases:  PK alias
//	clicks:   PK code, SK sk ("<ms>#<id>")
//	counters: PK code, SK sk ("<category>#<value>")
//	insights: PK code, SK generatedAt
//	monitor:  PK metricType, SK sk ("<ms>#<id>")
type Tables struct {
	Links           string
	Aliases         string
	Clicks          string
	Counters        string
	Insights        string
	Monitor         string
	VisibilityIndex string
}

type Storage struct {
	api    API
	tables Tables
}

func New(api API, tables Tables) *Storage {
	return &Storage{api: api, tables: tables}
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// InsertLink writes the link and its alias claim in one transaction. Every
// claim is guarded in both namespaces, so a code can never shadow an alias.
func (s *Storage) InsertLink(ctx context.Context, rec link.Record) error {
	const op = "storage.dynamo.InsertLink"

	item, err := attributevalue.MarshalMap(toLinkItem(rec))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	writes := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           aws.String(s.tables.Links),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(code)"),
			},
		},
		{
			ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(s.tables.Aliases),
				Key:                 stringKey("alias", rec.Code),
				ConditionExpression: aws.String("attribute_not_exists(alias)"),
			},
		},
	}

	if rec.Alias != "" {
		aliasAV, err := attributevalue.MarshalMap(aliasItem{Alias: rec.Alias, Code: rec.Code})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		writes = append(writes,
			types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(s.tables.Aliases),
					Item:                aliasAV,
					ConditionExpression: aws.String("attribute_not_exists(alias)"),
				},
			},
			types.TransactWriteItem{
				ConditionCheck: &types.ConditionCheck{
					TableName:           aws.String(s.tables.Links),
					Key:                 stringKey("code", rec.Alias),
					ConditionExpression: aws.String("attribute_not_exists(code)"),
				},
			},
		)
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for i, reason := range canceled.CancellationReasons {
				if aws.ToString(reason.Code) != conditionalCheckFailed {
					continue
				}
				if i < 2 {
					return fmt.Errorf("%s: %w", op, storage.ErrCodeExists)
				}
				return fmt.Errorf("%s: %w", op, storage.ErrAliasExists)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) LinkByCode(ctx context.Context, code string) (link.Record, error) {
	const op = "storage.dynamo.LinkByCode"

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Links),
		Key:            stringKey("code", code),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(out.Item) == 0 {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var item linkItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	return item.record(), nil
}

func (s *Storage) LinkByAlias(ctx context.Context, alias string) (link.Record, error) {
	const op = "storage.dynamo.LinkByAlias"

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Aliases),
		Key:            stringKey("alias", alias),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(out.Item) == 0 {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var item aliasItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := s.LinkByCode(ctx, item.Code)
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Storage) IncrementClicks(ctx context.Context, code string, delta int64) error {
	const op = "storage.dynamo.IncrementClicks"

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Links),
		Key:                 stringKey("code", code),
		UpdateExpression:    aws.String("ADD clickCount :inc"),
		ConditionExpression: aws.String("attribute_exists(code)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		},
	})

	return mapUpdateErr(op, err)
}

func (s *Storage) SaveInsight(ctx context.Context, code, text string, generatedAt time.Time) error {
	const op = "storage.dynamo.SaveInsight"

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Links),
		Key:                 stringKey("code", code),
		UpdateExpression:    aws.String("SET cachedInsight = :text, insightGeneratedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(code)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":text": &types.AttributeValueMemberS{Value: text},
			":at":   &types.AttributeValueMemberN{Value: strconv.FormatInt(generatedAt.UnixMilli(), 10)},
		},
	})

	return mapUpdateErr(op, err)
}

func mapUpdateErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func (s *Storage) PublicLinks(ctx context.Context, limit, offset int) ([]link.Record, error) {
	const op = "storage.dynamo.PublicLinks"

	recs := []link.Record{}
	if limit <= 0 {
		return recs, nil
	}

	paginator := dynamodb.NewQueryPaginator(s.api, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Links),
		IndexName:              aws.String(s.tables.VisibilityIndex),
		KeyConditionExpression: aws.String("visibility = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: string(link.VisibilityPublic)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(min(offset+limit, 1000))),
	})

	skipped := 0
	for paginator.HasMorePages() && len(recs) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var items []linkItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for _, item := range items {
			if skipped < offset {
				skipped++
				continue
			}
			if len(recs) == limit {
				break
			}
			recs = append(recs, item.record())
		}
	}

	return recs, nil
}

func (s *Storage) AppendClick(ctx context.Context, e click.Event) error {
	const op = "storage.dynamo.AppendClick"

	return s.put(ctx, op, s.tables.Clicks, toClickItem(e))
}

func (s *Storage) put(ctx context.Context, op, table string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ClicksSince(ctx context.Context, code string, since time.Time) ([]click.Event, error) {
	const op = "storage.dynamo.ClicksSince"

	var items []clickItem
	err := queryAll(ctx, s.api, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Clicks),
		KeyConditionExpression: aws.String("code = :c AND sk >= :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":    &types.AttributeValueMemberS{Value: code},
			":from": &types.AttributeValueMemberS{Value: timeKey(since)},
		},
		ScanIndexForward: aws.Bool(true),
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events := make([]click.Event, 0, len(items))
	for _, item := range items {
		events = append(events, item.event())
	}

	return events, nil
}

// queryAll drains every page of the query into out.
func queryAll[T any](ctx context.Context, api API, input *dynamodb.QueryInput, out *[]T) error {
	paginator := dynamodb.NewQueryPaginator(api, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}

		var items []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return err
		}
		*out = append(*out, items...)
	}

	return nil
}

func (s *Storage) IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error {
	const op = "storage.dynamo.IncrementCategory"

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.Counters),
		Key: map[string]types.AttributeValue{
			"code": &types.AttributeValueMemberS{Value: code},
			"sk":   &types.AttributeValueMemberS{Value: counterKey(category, value)},
		},
		UpdateExpression: aws.String("ADD #count :inc SET #category = :category, categoryValue = :value, lastUpdated = :at"),
		ExpressionAttributeNames: map[string]string{
			"#count":    "count",
			"#category": "category",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc":      &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
			":category": &types.AttributeValueMemberS{Value: string(category)},
			":value":    &types.AttributeValueMemberS{Value: value},
			":at":       &types.AttributeValueMemberN{Value: strconv.FormatInt(at.UnixMilli(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Categories(ctx context.Context, code string) ([]click.Counter, error) {
	const op = "storage.dynamo.Categories"

	var items []counterItem
	err := queryAll(ctx, s.api, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Counters),
		KeyConditionExpression: aws.String("code = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: code},
		},
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	counters := make([]click.Counter, 0, len(items))
	for _, item := range items {
		counters = append(counters, item.counter())
	}

	return counters, nil
}

func (s *Storage) AppendInsightHistory(ctx context.Context, e insight.HistoryEntry) error {
	const op = "storage.dynamo.AppendInsightHistory"

	return s.put(ctx, op, s.tables.Insights, toHistoryItem(e))
}

func (s *Storage) AppendMetric(ctx context.Context, m monitor.Metric) error {
	const op = "storage.dynamo.AppendMetric"

	return s.put(ctx, op, s.tables.Monitor, toMetricItem(m))
}

func (s *Storage) MetricsSince(ctx context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error) {
	const op = "storage.dynamo.MetricsSince"

	var items []metricItem
	err := queryAll(ctx, s.api, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Monitor),
		KeyConditionExpression: aws.String("metricType = :k AND sk >= :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k":    &types.AttributeValueMemberS{Value: string(kind)},
			":from": &types.AttributeValueMemberS{Value: timeKey(since)},
		},
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics := make([]monitor.Metric, 0, len(items))
	for _, item := range items {
		metrics = append(metrics, item.metric())
	}

	return metrics, nil
}

func (s *Storage) Close() error {
	return nil
}
