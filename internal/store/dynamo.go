package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/datatops/datatops/internal/config"
	"github.com/datatops/datatops/pkg/models"
)

// appendRetries bounds how many times an append bumps its timestamp when two
// writes land on the same nanosecond.
const appendRetries = 8

type projectItem struct {
	Name      string    `dynamodbav:"name"`
	UserKey   string    `dynamodbav:"user_key"`
	AdminKey  string    `dynamodbav:"admin_key"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

type recordItem struct {
	Project string `dynamodbav:"project"`
	TS      int64  `dynamodbav:"ts"`
	Payload string `dynamodbav:"payload"`
}

// DynamoStore keeps projects in one table keyed by name and records in a
// second table keyed by project with a nanosecond timestamp sort key, so a
// query in ascending key order is append order.
type DynamoStore struct {
	client        *dynamodb.Client
	projectsTable string
	recordsTable  string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore connects to DynamoDB and creates both tables if they do not
// exist yet. A non-empty endpoint overrides the AWS one, for dynamodb-local.
func NewDynamoStore(ctx context.Context, cfg config.DynamoConfig) (*DynamoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	s := &DynamoStore{
		client:        dynamodb.NewFromConfig(awsCfg, opts...),
		projectsTable: cfg.ProjectsTable,
		recordsTable:  cfg.RecordsTable,
	}
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DynamoStore) ensureTables(ctx context.Context) error {
	if err := s.ensureTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.projectsTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("name"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("name"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}); err != nil {
		return err
	}
	return s.ensureTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.recordsTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("project"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("ts"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("project"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("ts"), AttributeType: types.ScalarAttributeTypeN},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
}

func (s *DynamoStore) ensureTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	if _, err := s.client.CreateTable(ctx, input); err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", aws.ToString(input.TableName), err)
		}
	}
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", aws.ToString(input.TableName), err)
	}
	return nil
}

func (s *DynamoStore) CreateProject(ctx context.Context, p *models.Project) error {
	item, err := attributevalue.MarshalMap(projectItem{
		Name:      p.Name,
		UserKey:   p.UserKey,
		AdminKey:  p.AdminKey,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	// "name" is a DynamoDB reserved word, hence the alias.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.projectsTable),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{"#n": "name"},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: put project: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *DynamoStore) GetProject(ctx context.Context, name string) (*models.Project, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.projectsTable),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get project: %v", ErrUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item projectItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal project: %w", err)
	}
	return &models.Project{
		Name:      item.Name,
		UserKey:   item.UserKey,
		AdminKey:  item.AdminKey,
		CreatedAt: item.CreatedAt,
	}, nil
}

func (s *DynamoStore) AppendRecord(ctx context.Context, project string, payload json.RawMessage) (*models.Record, error) {
	if _, err := s.GetProject(ctx, project); err != nil {
		return nil, err
	}

	ts := time.Now().UTC().UnixNano()
	for i := 0; i < appendRetries; i++ {
		item, err := attributevalue.MarshalMap(recordItem{
			Project: project,
			TS:      ts,
			Payload: string(payload),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}

		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.recordsTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(ts)"),
		})
		if err == nil {
			return &models.Record{Payload: payload, StoredAt: time.Unix(0, ts).UTC()}, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, fmt.Errorf("%w: put record: %v", ErrUnavailable, err)
		}
		// Same-nanosecond collision with a concurrent append. Claim the
		// next slot instead of overwriting.
		ts++
	}
	return nil, fmt.Errorf("%w: timestamp contention on project %q", ErrUnavailable, project)
}

func (s *DynamoStore) ListRecords(ctx context.Context, project string, limit int) ([]*models.Record, error) {
	if _, err := s.GetProject(ctx, project); err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                aws.String(s.recordsTable),
		KeyConditionExpression:   aws.String("#p = :p"),
		ExpressionAttributeNames: map[string]string{"#p": "project"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: project},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var records []*models.Record
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: query records: %v", ErrUnavailable, err)
		}

		var items []recordItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		for _, it := range items {
			records = append(records, &models.Record{
				Payload:  json.RawMessage(it.Payload),
				StoredAt: time.Unix(0, it.TS).UTC(),
			})
			if limit > 0 && len(records) == limit {
				return records, nil
			}
		}
	}
	return records, nil
}

func (s *DynamoStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.projectsTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: scan projects: %v", ErrUnavailable, err)
		}

		var items []projectItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal projects: %w", err)
		}
		for _, it := range items {
			projects = append(projects, &models.Project{
				Name:      it.Name,
				UserKey:   it.UserKey,
				AdminKey:  it.AdminKey,
				CreatedAt: it.CreatedAt,
			})
		}
	}
	return projects, nil
}

func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.projectsTable),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *DynamoStore) Close() error { return nil }
