// Package ddb stores deployment records, activity entries and notifications
// in DynamoDB tables keyed by PK (entity kind) and SK (record id).
package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/clustermaster/clustermaster/domain"
)

// API is the subset of the DynamoDB client used by the repositories.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Options configures the DynamoDB backend.
type Options struct {
	// Table holds deployment records.
	Table string
	// ActivityTable holds activity entries and notifications. Defaults to Table.
	ActivityTable string
	// Endpoint overrides the service endpoint, e.g. a local DynamoDB.
	Endpoint string
	Region   string
}

// NewClient builds a DynamoDB client from the default AWS config chain.
// A custom endpoint gets static dummy credentials when none are configured.
func NewClient(ctx context.Context, opts Options) (*dynamodb.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if opts.Endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(opts.Endpoint)
		if o.Region == "" {
			o.Region = "us-east-1"
		}
		if o.Credentials == nil {
			o.Credentials = credentials.NewStaticCredentialsProvider("x", "x", "")
		}
	}), nil
}

// New returns repositories backed by cli, creating the tables when missing.
func New(ctx context.Context, cli API, opts Options) (*domain.Repositories, error) {
	if opts.Table == "" {
		return nil, errors.New("ddb: table name required")
	}
	if opts.ActivityTable == "" {
		opts.ActivityTable = opts.Table
	}
	for _, t := range []string{opts.Table, opts.ActivityTable} {
		if err := createTableIfNotExists(ctx, cli, t); err != nil {
			return nil, err
		}
	}
	return &domain.Repositories{
		Deployment:   &DeploymentRepository{table: opts.Table, cli: cli},
		Activity:     &ActivityRepository{table: opts.ActivityTable, cli: cli},
		Notification: &NotificationRepository{table: opts.ActivityTable, cli: cli},
	}, nil
}

func createTableIfNotExists(ctx context.Context, cli API, table string) error {
	_, err := cli.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}
