package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
)

const (
	attrPK = "PK"
	attrSK = "SK"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Config selects the table and, for local development, an endpoint override
// and static credentials.
type Config struct {
	Table           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Store implements storage.Store on a single DynamoDB table with string keys
// PK and SK. Each secondary index is a GSI named after the index whose hash
// key is the indexed attribute.
type Store struct {
	client API
	table  string
}

// New loads the AWS configuration and builds a store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	slog.Info("[DynamoDB] Store configured", "table", cfg.Table, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return NewStore(dynamodb.NewFromConfig(awsCfg), cfg.Table), nil
}

// NewStore wraps an existing client.
func NewStore(client API, table string) *Store {
	return &Store{client: client, table: table}
}

func (s *Store) key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *Store) Get(ctx context.Context, pk, sk string) (*storage.Item, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting item from dynamo: %w", err)
	}
	if resp.Item == nil {
		return nil, storage.ErrNotFound
	}
	return unmarshalItem(resp.Item)
}

func (s *Store) Put(ctx context.Context, item *storage.Item, cond *storage.Condition) error {
	av, err := marshalItem(item)
	if err != nil {
		return err
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}
	switch {
	case cond == nil:
	case cond.NotExists:
		in.ConditionExpression = aws.String("attribute_not_exists(#pk)")
		in.ExpressionAttributeNames = map[string]string{"#pk": attrPK}
	default:
		in.ConditionExpression = aws.String("#guard = :guard")
		in.ExpressionAttributeNames = map[string]string{"#guard": cond.Attribute}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":guard": &types.AttributeValueMemberS{Value: cond.Equals},
		}
	}

	if _, err := s.client.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("error putting item to dynamo: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("error deleting item from dynamo: %w", err)
	}
	return nil
}

// Query runs a key condition against the table or a GSI and follows
// LastEvaluatedKey until the result set is exhausted.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]*storage.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	in := &dynamodb.QueryInput{TableName: aws.String(s.table)}
	if q.PK != "" {
		in.KeyConditionExpression = aws.String("#pk = :pk")
		in.ExpressionAttributeNames = map[string]string{"#pk": attrPK}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: q.PK},
		}
		if q.SKPrefix != "" {
			in.KeyConditionExpression = aws.String("#pk = :pk AND begins_with(#sk, :sk)")
			in.ExpressionAttributeNames["#sk"] = attrSK
			in.ExpressionAttributeValues[":sk"] = &types.AttributeValueMemberS{Value: q.SKPrefix}
		}
	} else {
		in.IndexName = aws.String(q.Index)
		in.KeyConditionExpression = aws.String("#ik = :iv")
		in.ExpressionAttributeNames = map[string]string{"#ik": storage.IndexAttributes[q.Index]}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":iv": &types.AttributeValueMemberS{Value: q.IndexValue},
		}
	}

	var items []*storage.Item
	for {
		resp, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("error querying dynamo: %w", err)
		}
		for _, raw := range resp.Items {
			item, err := unmarshalItem(raw)
			if err != nil {
				return nil, err
			}
			if !q.Matches(item) {
				continue
			}
			items = append(items, q.Project(item))
		}
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = resp.LastEvaluatedKey
	}
	return items, nil
}

func marshalItem(item *storage.Item) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(item.Attrs)
	if err != nil {
		return nil, fmt.Errorf("error marshalling item for dynamo: %w", err)
	}
	if av == nil {
		av = make(map[string]types.AttributeValue, 2)
	}
	av[attrPK] = &types.AttributeValueMemberS{Value: item.PK}
	av[attrSK] = &types.AttributeValueMemberS{Value: item.SK}
	return av, nil
}

func unmarshalItem(av map[string]types.AttributeValue) (*storage.Item, error) {
	attrs := map[string]interface{}{}
	if err := attributevalue.UnmarshalMap(av, &attrs); err != nil {
		return nil, fmt.Errorf("error unmarshalling dynamo item: %w", err)
	}

	item := &storage.Item{Attrs: attrs}
	item.PK, _ = attrs[attrPK].(string)
	item.SK, _ = attrs[attrSK].(string)
	delete(attrs, attrPK)
	delete(attrs, attrSK)
	return item, nil
}
