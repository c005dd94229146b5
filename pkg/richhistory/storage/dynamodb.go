package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"mercator-hq/richhistory/pkg/richhistory"
)

const (
	// DefaultMaxItemBytes is DynamoDB's item size limit.
	DefaultMaxItemBytes = 400 * 1024

	// maxTransactItems is DynamoDB's TransactWriteItems limit.
	maxTransactItems = 100

	// maxBatchWrite is DynamoDB's BatchWriteItem limit.
	maxBatchWrite = 25

	// maxBatchRetries bounds resubmission of unprocessed batch items.
	maxBatchRetries = 5

	kindEntry    = "entry"
	kindSettings = "settings"
	settingsPK   = "settings"
	entryPrefix  = "entry#"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBBackend.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *sdk.UpdateItemInput, optFns ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *sdk.TransactWriteItemsInput, optFns ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *sdk.BatchWriteItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error)
}

// DynamoDBConfig contains configuration for the DynamoDB backend.
type DynamoDBConfig struct {
	// Table is the table name. Its partition key must be a string named "pk".
	Table string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// MaxItemBytes is the item size above which Commit fails with ErrQuotaExceeded.
	// Default: 400 KiB
	MaxItemBytes int
}

// entryItem is the DynamoDB representation of an entry.
type entryItem struct {
	PK             string `dynamodbav:"pk"`
	Kind           string `dynamodbav:"kind"`
	ID             string `dynamodbav:"id"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	DataSourceUID  string `dynamodbav:"datasource_uid"`
	DataSourceName string `dynamodbav:"datasource_name"`
	Queries        string `dynamodbav:"queries"`
	Starred        bool   `dynamodbav:"starred"`
	Comment        string `dynamodbav:"comment"`
	HasComment     bool   `dynamodbav:"has_comment"`
}

// settingsItem is the DynamoDB representation of the settings document.
type settingsItem struct {
	PK   string `dynamodbav:"pk"`
	Kind string `dynamodbav:"kind"`
	Data string `dynamodbav:"data"`
}

func entryKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: entryPrefix + id},
	}
}

func toItem(e richhistory.Entry) entryItem {
	item := entryItem{
		PK:             entryPrefix + e.ID,
		Kind:           kindEntry,
		ID:             e.ID,
		CreatedAt:      toMillis(e.CreatedAt),
		DataSourceUID:  e.DataSourceUID,
		DataSourceName: e.DataSourceName,
		Queries:        string(e.Queries),
		Starred:        e.Starred,
	}
	if e.Comment != nil {
		item.Comment = *e.Comment
		item.HasComment = true
	}
	return item
}

func (item entryItem) toEntry() richhistory.Entry {
	e := richhistory.Entry{
		ID:             item.ID,
		CreatedAt:      fromMillis(item.CreatedAt),
		DataSourceUID:  item.DataSourceUID,
		DataSourceName: item.DataSourceName,
		Queries:        json.RawMessage(item.Queries),
		Starred:        item.Starred,
	}
	if item.HasComment {
		c := item.Comment
		e.Comment = &c
	}
	return e
}

// itemSize approximates the DynamoDB size of an item: attribute names plus values.
func itemSize(av map[string]types.AttributeValue) int {
	size := 0
	for name, v := range av {
		size += len(name)
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			size += len(tv.Value)
		case *types.AttributeValueMemberN:
			size += len(tv.Value)
		case *types.AttributeValueMemberB:
			size += len(tv.Value)
		default:
			size++
		}
	}
	return size
}

// NewDynamoDBClient initializes a DynamoDB client from the backend configuration.
func NewDynamoDBClient(ctx context.Context, cfg *DynamoDBConfig) (*sdk.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// DynamoDBBackend implements Backend on a single DynamoDB table.
type DynamoDBBackend struct {
	client DynamoDBAPI
	config DynamoDBConfig
	logger *slog.Logger
}

// NewDynamoDBBackend creates a backend over an existing client.
func NewDynamoDBBackend(client DynamoDBAPI, config *DynamoDBConfig) (*DynamoDBBackend, error) {
	if config == nil || config.Table == "" {
		return nil, richhistory.NewStorageError("dynamodb", "open", errors.New("table name is required"))
	}
	cfg := *config
	if cfg.MaxItemBytes <= 0 {
		cfg.MaxItemBytes = DefaultMaxItemBytes
	}

	logger := slog.Default().With("component", "richhistory.storage.dynamodb")
	logger.Info("DynamoDB storage initialized",
		"table", cfg.Table,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
	)

	return &DynamoDBBackend{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Name implements Backend.
func (d *DynamoDBBackend) Name() string {
	return "dynamodb"
}

// isItemTooLarge reports whether err is DynamoDB rejecting an oversized item.
func isItemTooLarge(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ValidationError" && strings.Contains(strings.ToLower(aws.ToString(reason.Message)), "size") {
				return true
			}
		}
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationException" &&
			strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "size")
	}
	return false
}

func (d *DynamoDBBackend) wrap(operation string, err error) error {
	if isItemTooLarge(err) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return richhistory.NewStorageError(d.Name(), operation, err)
}

// scanEntries pages through every entry item.
func (d *DynamoDBBackend) scanEntries(ctx context.Context, projection string) ([]map[string]types.AttributeValue, error) {
	input := &sdk.ScanInput{
		TableName:                &d.config.Table,
		FilterExpression:         aws.String("#kind = :kind"),
		ExpressionAttributeNames: map[string]string{"#kind": "kind"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kind": &types.AttributeValueMemberS{Value: kindEntry},
		},
	}
	if projection != "" {
		input.ProjectionExpression = aws.String(projection)
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := d.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// List implements Backend.
func (d *DynamoDBBackend) List(ctx context.Context) ([]richhistory.Entry, error) {
	items, err := d.scanEntries(ctx, "")
	if err != nil {
		return nil, d.wrap("list", err)
	}

	entries := make([]richhistory.Entry, 0, len(items))
	for _, av := range items {
		var item entryItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, d.wrap("unmarshal", err)
		}
		entries = append(entries, item.toEntry())
	}
	return entries, nil
}

// Get implements Backend.
func (d *DynamoDBBackend) Get(ctx context.Context, id string) (richhistory.Entry, error) {
	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &d.config.Table,
		Key:            entryKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return richhistory.Entry{}, d.wrap("get", err)
	}
	if out.Item == nil {
		return richhistory.Entry{}, notFound(id)
	}

	var item entryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return richhistory.Entry{}, d.wrap("unmarshal", err)
	}
	return item.toEntry(), nil
}

// Commit implements Backend. The put and the evictions form one transaction,
// so at most maxTransactItems-1 entries can be evicted per commit.
func (d *DynamoDBBackend) Commit(ctx context.Context, entry richhistory.Entry, evict []string) error {
	if len(evict) > maxTransactItems-1 {
		return richhistory.NewStorageError(d.Name(), "commit",
			fmt.Errorf("cannot evict %d entries in one transaction (max %d)", len(evict), maxTransactItems-1))
	}

	av, err := attributevalue.MarshalMap(toItem(entry))
	if err != nil {
		return d.wrap("marshal", err)
	}
	if size := itemSize(av); size > d.config.MaxItemBytes {
		d.logger.Warn("item exceeds size limit",
			"id", entry.ID,
			"size", size,
			"max_item_bytes", d.config.MaxItemBytes,
		)
		return fmt.Errorf("%w: item is %d bytes, limit %d", ErrQuotaExceeded, size, d.config.MaxItemBytes)
	}

	items := make([]types.TransactWriteItem, 0, len(evict)+1)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &d.config.Table,
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	})
	for _, id := range evict {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: &d.config.Table,
				Key:       entryKey(id),
			},
		})
	}

	if _, err := d.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return d.wrap("commit", err)
	}
	return nil
}

// Update implements Backend.
func (d *DynamoDBBackend) Update(ctx context.Context, entry richhistory.Entry) error {
	item := toItem(entry)
	_, err := d.client.UpdateItem(ctx, &sdk.UpdateItemInput{
		TableName:           &d.config.Table,
		Key:                 entryKey(entry.ID),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		UpdateExpression:    aws.String("SET #starred = :starred, #comment = :comment, #has_comment = :has_comment"),
		ExpressionAttributeNames: map[string]string{
			"#starred":     "starred",
			"#comment":     "comment",
			"#has_comment": "has_comment",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":starred":     &types.AttributeValueMemberBOOL{Value: item.Starred},
			":comment":     &types.AttributeValueMemberS{Value: item.Comment},
			":has_comment": &types.AttributeValueMemberBOOL{Value: item.HasComment},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return notFound(entry.ID)
		}
		return d.wrap("update", err)
	}
	return nil
}

// Delete implements Backend.
func (d *DynamoDBBackend) Delete(ctx context.Context, ids ...string) (int64, error) {
	var count int64
	for _, id := range ids {
		out, err := d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
			TableName:    &d.config.Table,
			Key:          entryKey(id),
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return count, d.wrap("delete", err)
		}
		if len(out.Attributes) > 0 {
			count++
		}
	}
	return count, nil
}

// Clear implements Backend. Entries are removed in batches of 25.
func (d *DynamoDBBackend) Clear(ctx context.Context) error {
	keys, err := d.scanEntries(ctx, "pk")
	if err != nil {
		return d.wrap("clear", err)
	}

	for start := 0; start < len(keys); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"pk": key["pk"]}},
			})
		}
		if err := d.batchWrite(ctx, requests); err != nil {
			return d.wrap("clear", err)
		}
	}

	d.logger.Debug("table cleared", "deleted", len(keys))
	return nil
}

// batchWrite submits requests and resubmits unprocessed items.
func (d *DynamoDBBackend) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.config.Table: requests}
	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &sdk.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		if len(out.UnprocessedItems[d.config.Table]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}
	return fmt.Errorf("%d items still unprocessed after %d attempts", len(pending[d.config.Table]), maxBatchRetries)
}

// LoadSettings implements SettingsStore.
func (d *DynamoDBBackend) LoadSettings(ctx context.Context) (richhistory.Settings, error) {
	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName: &d.config.Table,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: settingsPK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return richhistory.Settings{}, d.wrap("load_settings", err)
	}
	if out.Item == nil {
		return richhistory.Settings{}, ErrNoSettings
	}

	var item settingsItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return richhistory.Settings{}, d.wrap("load_settings", err)
	}
	var settings richhistory.Settings
	if err := json.Unmarshal([]byte(item.Data), &settings); err != nil {
		return richhistory.Settings{}, d.wrap("load_settings", err)
	}
	return settings, nil
}

// SaveSettings implements SettingsStore.
func (d *DynamoDBBackend) SaveSettings(ctx context.Context, settings richhistory.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return d.wrap("save_settings", err)
	}
	av, err := attributevalue.MarshalMap(settingsItem{PK: settingsPK, Kind: kindSettings, Data: string(data)})
	if err != nil {
		return d.wrap("save_settings", err)
	}

	if _, err := d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: &d.config.Table,
		Item:      av,
	}); err != nil {
		return d.wrap("save_settings", err)
	}
	return nil
}

// Close implements Backend. The SDK client holds no resources to release.
func (d *DynamoDBBackend) Close() error {
	return nil
}
