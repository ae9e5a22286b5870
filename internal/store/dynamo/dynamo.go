// Package dynamo implements the Store interface using AWS DynamoDB with a
// single-table layout. It serves serverless deployments where neither Redis
// nor local state is available.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// DDBAPI is the subset of the DynamoDB client the store uses.
type DDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// Store implements store.Store backed by DynamoDB.
type Store struct {
	client      DDBAPI
	tableName   string
	readingTTL  time.Duration
	logger      *slog.Logger
	createTable bool
}

// New creates a new DynamoDB Store.
func New(cfg *types.DynamoDBConfig, logger *slog.Logger) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: use static credentials and custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		client:      dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName:   cfg.TableName,
		readingTTL:  retentionTTL(cfg.RetentionTTL),
		logger:      logger,
		createTable: cfg.CreateTable,
	}, nil
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client DDBAPI, tableName string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, tableName: tableName, readingTTL: defaultReadingTTL, logger: logger}
}

// Start initializes the store: optionally creates the table, then pings.
func (s *Store) Start(ctx context.Context) error {
	if s.createTable {
		if err := s.ensureTable(ctx); err != nil {
			return err
		}
	}
	return s.Ping(ctx)
}

// Stop is a no-op for DynamoDB (no persistent connections to close).
func (s *Store) Stop(_ context.Context) error {
	return nil
}

// Ping checks connectivity by describing the table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &s.tableName,
	})
	if err != nil {
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	return nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &s.tableName,
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: ddbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		var riue *ddbtypes.ResourceInUseException
		if errors.As(err, &riue) {
			return nil // table already exists
		}
		return fmt.Errorf("creating table: %w", err)
	}

	// Enable TTL on the "ttl" attribute.
	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: &s.tableName,
		TimeToLiveSpecification: &ddbtypes.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String("ttl"),
		},
	})
	if err != nil {
		s.logger.Warn("failed to enable TTL (may already be enabled)", "error", err)
	}

	return nil
}

// isConditionalCheckFailed returns true if the error is a DynamoDB ConditionalCheckFailedException.
func isConditionalCheckFailed(err error) bool {
	var ccfe *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccfe)
}
