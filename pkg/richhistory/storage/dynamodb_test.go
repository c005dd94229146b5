package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"mercator-hq/richhistory/pkg/richhistory"
)

// fakeDynamoDB is an in-memory stand-in for the subset of DynamoDB the backend uses.
type fakeDynamoDB struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	failNext error

	// Counts calls per operation.
	calls map[string]int
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{
		items:    make(map[string]map[string]types.AttributeValue),
		pageSize: 2,
		calls:    make(map[string]int),
	}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["pk"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamoDB) takeFailure(op string) error {
	f.calls[op]++
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("GetItem"); err != nil {
		return nil, err
	}
	return &sdk.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("PutItem"); err != nil {
		return nil, err
	}
	f.items[pkOf(in.Item)] = in.Item
	return &sdk.PutItemOutput{}, nil
}

// UpdateItem understands "attribute_exists(pk)" and "SET #a = :a, #b = :b".
func (f *fakeDynamoDB) UpdateItem(ctx context.Context, in *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("UpdateItem"); err != nil {
		return nil, err
	}

	item, ok := f.items[pkOf(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	updated := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		updated[k] = v
	}
	expr := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	for _, clause := range strings.Split(expr, ",") {
		parts := strings.Split(clause, "=")
		name := in.ExpressionAttributeNames[strings.TrimSpace(parts[0])]
		updated[name] = in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	}
	f.items[pkOf(in.Key)] = updated
	return &sdk.UpdateItemOutput{}, nil
}

func (f *fakeDynamoDB) DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("DeleteItem"); err != nil {
		return nil, err
	}
	old := f.items[pkOf(in.Key)]
	delete(f.items, pkOf(in.Key))
	return &sdk.DeleteItemOutput{Attributes: old}, nil
}

// Scan filters on the "kind" attribute and pages pageSize items at a time.
func (f *fakeDynamoDB) Scan(ctx context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("Scan"); err != nil {
		return nil, err
	}

	kind := in.ExpressionAttributeValues[":kind"].(*types.AttributeValueMemberS).Value
	var keys []string
	for pk, item := range f.items {
		if item["kind"].(*types.AttributeValueMemberS).Value == kind {
			keys = append(keys, pk)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := pkOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after) + 1
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &sdk.ScanOutput{}
	for _, pk := range keys[start:end] {
		out.Items = append(out.Items, f.items[pk])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: keys[end-1]}}
	}
	return out, nil
}

func (f *fakeDynamoDB) TransactWriteItems(ctx context.Context, in *sdk.TransactWriteItemsInput, _ ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("TransactWriteItems"); err != nil {
		return nil, err
	}

	// Validate every condition before applying anything.
	for _, item := range in.TransactItems {
		if item.Put != nil && aws.ToString(item.Put.ConditionExpression) == "attribute_not_exists(pk)" {
			if _, exists := f.items[pkOf(item.Put.Item)]; exists {
				return nil, &types.TransactionCanceledException{
					Message:             aws.String("Transaction cancelled"),
					CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
				}
			}
		}
	}
	for _, item := range in.TransactItems {
		switch {
		case item.Put != nil:
			f.items[pkOf(item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(f.items, pkOf(item.Delete.Key))
		}
	}
	return &sdk.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamoDB) BatchWriteItem(ctx context.Context, in *sdk.BatchWriteItemInput, _ ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("BatchWriteItem"); err != nil {
		return nil, err
	}
	for _, requests := range in.RequestItems {
		for _, r := range requests {
			if r.DeleteRequest != nil {
				delete(f.items, pkOf(r.DeleteRequest.Key))
			}
		}
	}
	return &sdk.BatchWriteItemOutput{}, nil
}

func newTestDynamoDB(t *testing.T) (*DynamoDBBackend, *fakeDynamoDB) {
	t.Helper()
	fake := newFakeDynamoDB()
	backend, err := NewDynamoDBBackend(fake, &DynamoDBConfig{Table: "rich_history", MaxItemBytes: 4096})
	if err != nil {
		t.Fatalf("NewDynamoDBBackend() failed: %v", err)
	}
	return backend, fake
}

// TestDynamoDBBackend_CommitListGet tests entry round trips and paginated scans.
func TestDynamoDBBackend_CommitListGet(t *testing.T) {
	backend, _ := newTestDynamoDB(t)
	ctx := context.Background()
	now := time.Now()

	comment := ""
	withEmptyComment := testEntry("c", "prom", now, `3`)
	withEmptyComment.Comment = &comment

	for _, e := range []richhistory.Entry{
		testEntry("a", "prom", now, `[{"expr":"up"}]`),
		testEntry("b", "loki", now, `2`),
		withEmptyComment,
	} {
		if err := backend.Commit(ctx, e, nil); err != nil {
			t.Fatalf("Commit() failed: %v", err)
		}
	}
	backend.SaveSettings(ctx, richhistory.DefaultSettings())

	entries, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries across pages, got %d", len(entries))
	}

	got, err := backend.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got.Queries) != `[{"expr":"up"}]` || !got.CreatedAt.Equal(now.UTC().Truncate(time.Millisecond)) {
		t.Errorf("Unexpected entry %+v", got)
	}
	if got.Comment != nil {
		t.Errorf("Expected no comment, got %q", *got.Comment)
	}

	got, _ = backend.Get(ctx, "c")
	if got.Comment == nil || *got.Comment != "" {
		t.Errorf("Expected empty comment to be kept, got %v", got.Comment)
	}

	if _, err := backend.Get(ctx, "missing"); !errors.Is(err, richhistory.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestDynamoDBBackend_CommitEvicts tests transactional eviction and ID collisions.
func TestDynamoDBBackend_CommitEvicts(t *testing.T) {
	backend, fake := newTestDynamoDB(t)
	ctx := context.Background()
	now := time.Now()

	backend.Commit(ctx, testEntry("a", "prom", now, `1`), nil)
	if err := backend.Commit(ctx, testEntry("b", "prom", now, `2`), []string{"a"}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if _, err := backend.Get(ctx, "a"); !errors.Is(err, richhistory.ErrNotFound) {
		t.Errorf("Expected evicted entry gone, got %v", err)
	}
	if fake.calls["TransactWriteItems"] != 2 {
		t.Errorf("Expected 2 transactions, got %d", fake.calls["TransactWriteItems"])
	}

	var storageErr *richhistory.StorageError
	if err := backend.Commit(ctx, testEntry("b", "prom", now, `3`), nil); !errors.As(err, &storageErr) {
		t.Errorf("Expected StorageError for existing ID, got %v", err)
	}
}

// TestDynamoDBBackend_ItemTooLarge tests both local and service-side size rejection.
func TestDynamoDBBackend_ItemTooLarge(t *testing.T) {
	backend, fake := newTestDynamoDB(t)
	ctx := context.Background()

	big := testEntry("big", "prom", time.Now(), `"`+strings.Repeat("x", 5000)+`"`)
	if err := backend.Commit(ctx, big, nil); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
	if fake.calls["TransactWriteItems"] != 0 {
		t.Error("Expected oversized item to be rejected before calling DynamoDB")
	}

	fake.failNext = &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: "Item size has exceeded the maximum allowed size",
	}
	if err := backend.Commit(ctx, testEntry("a", "prom", time.Now(), `1`), nil); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded from service error, got %v", err)
	}

	fake.failNext = errors.New("connection reset")
	err := backend.Commit(ctx, testEntry("a", "prom", time.Now(), `1`), nil)
	if errors.Is(err, ErrQuotaExceeded) {
		t.Error("Expected generic failures not to be reported as quota errors")
	}
}

// TestDynamoDBBackend_UpdateDeleteClear tests mutations.
func TestDynamoDBBackend_UpdateDeleteClear(t *testing.T) {
	backend, fake := newTestDynamoDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		backend.Commit(ctx, testEntry(id, "prom", now, `"`+id+`"`), nil)
	}
	backend.SaveSettings(ctx, richhistory.Settings{RetentionPeriodDays: 2})

	comment := "note"
	update := testEntry("a", "prom", now, `"a"`)
	update.Starred = true
	update.Comment = &comment
	if err := backend.Update(ctx, update); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	got, _ := backend.Get(ctx, "a")
	if !got.Starred || got.Comment == nil || *got.Comment != "note" {
		t.Errorf("Unexpected entry after update %+v", got)
	}

	if err := backend.Update(ctx, testEntry("missing", "prom", now, `1`)); !errors.Is(err, richhistory.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	count, err := backend.Delete(ctx, "a", "missing")
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 deleted, got %d", count)
	}

	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	entries, _ := backend.List(ctx)
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
	if fake.calls["BatchWriteItem"] == 0 {
		t.Error("Expected Clear to use BatchWriteItem")
	}

	settings, err := backend.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("Expected settings to survive Clear, got %v", err)
	}
	if settings.RetentionPeriodDays != 2 {
		t.Errorf("Expected retention 2, got %d", settings.RetentionPeriodDays)
	}
}

// TestDynamoDBBackend_NoSettings tests the empty settings case.
func TestDynamoDBBackend_NoSettings(t *testing.T) {
	backend, _ := newTestDynamoDB(t)
	if _, err := backend.LoadSettings(context.Background()); !errors.Is(err, ErrNoSettings) {
		t.Errorf("Expected ErrNoSettings, got %v", err)
	}
}

// TestNewDynamoDBBackend_RequiresTable tests configuration validation.
func TestNewDynamoDBBackend_RequiresTable(t *testing.T) {
	if _, err := NewDynamoDBBackend(newFakeDynamoDB(), &DynamoDBConfig{}); err == nil {
		t.Error("Expected error for missing table")
	}
}
