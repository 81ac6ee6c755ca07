// internal/storage/dynamostore.go
//
// DynamoDB 文件儲存後端。
// 每個帳戶為一個 item：雜湊鍵 _pk 為識別碼，_seq 保存寫入順序，其餘欄位沿用 AccountRecord。
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoHashKey = "_pk"
	// dynamoBatchSize 為 BatchWriteItem 單次上限。
	dynamoBatchSize = 25
	// dynamoMaxRetries 為 UnprocessedItems 重送次數上限。
	dynamoMaxRetries = 5
)

// DynamoAPI 為 DynamoStore 需要的最小 client 介面，方便測試替換。
type DynamoAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoAdminAPI 為建立資料表所需的 client 介面。
type DynamoAdminAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type dynamoItem struct {
	Key string `dynamodbav:"_pk"`
	Seq int    `dynamodbav:"_seq"`
	AccountRecord
}

// DynamoStore 以 DynamoDB 資料表實作 Store。
type DynamoStore struct {
	api   DynamoAPI
	table string
	// retryDelay 為重送 UnprocessedItems 前的等待時間。
	retryDelay time.Duration
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore 建立 DynamoDB 後端；api 為 nil 或 table 為空時 panic。
func NewDynamoStore(api DynamoAPI, table string) *DynamoStore {
	if api == nil {
		panic("account store invalid Dynamodb client: nil value")
	}
	if table == "" {
		panic("account store invalid Dynamodb table name: empty value")
	}
	return &DynamoStore{api: api, table: table, retryDelay: 100 * time.Millisecond}
}

// SaveAll 先刪除表中所有帳戶，再依序批次寫入。
func (s *DynamoStore) SaveAll(ctx context.Context, records []AccountRecord) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return fmt.Errorf("scan existing accounts: %w", err)
	}

	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					dynamoHashKey: &types.AttributeValueMemberS{Value: k},
				},
			},
		})
	}
	if err := s.batchWrite(ctx, reqs); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	records = dedupeByKey(records)
	reqs = make([]types.WriteRequest, 0, len(records))
	for i, rec := range records {
		item, err := attributevalue.MarshalMap(dynamoItem{Key: rec.Key(), Seq: i, AccountRecord: rec})
		if err != nil {
			return fmt.Errorf("marshal account %s: %w", rec.Key(), err)
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	if err := s.batchWrite(ctx, reqs); err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}
	return nil
}

// LoadAll 掃描整張表並依 _seq 排序。
func (s *DynamoStore) LoadAll(ctx context.Context) ([]AccountRecord, error) {
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
	})

	items := make([]dynamoItem, 0)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan accounts: %w", err)
		}
		page := make([]dynamoItem, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal accounts: %w", err)
		}
		items = append(items, page...)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	records := make([]AccountRecord, len(items))
	for i, it := range items {
		records[i] = it.AccountRecord
	}
	return records, nil
}

func (s *DynamoStore) Close() error { return nil }

func (s *DynamoStore) scanKeys(ctx context.Context) ([]string, error) {
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		ProjectionExpression:     aws.String("#pk"),
		ExpressionAttributeNames: map[string]string{"#pk": dynamoHashKey},
		ConsistentRead:           aws.Bool(true),
	})
	keys := make([]string, 0)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			if v, ok := item[dynamoHashKey].(*types.AttributeValueMemberS); ok {
				keys = append(keys, v.Value)
			}
		}
	}
	return keys, nil
}

// batchWrite 以 25 筆為一批寫入，並重送 UnprocessedItems。
func (s *DynamoStore) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	for start := 0; start < len(reqs); start += dynamoBatchSize {
		end := start + dynamoBatchSize
		if end > len(reqs) {
			end = len(reqs)
		}
		pending := map[string][]types.WriteRequest{s.table: reqs[start:end]}
		for attempt := 0; len(pending[s.table]) > 0; attempt++ {
			if attempt > dynamoMaxRetries {
				return fmt.Errorf("%d unprocessed items after %d retries", len(pending[s.table]), dynamoMaxRetries)
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.retryDelay):
				}
			}
			out, err := s.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
			if pending == nil {
				break
			}
		}
	}
	return nil
}

// CreateAccountsTable 建立帳戶資料表並等待其變為 ACTIVE。
func CreateAccountsTable(ctx context.Context, svc DynamoAdminAPI, table string) error {
	_, err := svc.CreateTable(ctx, &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(dynamoHashKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(dynamoHashKey),
				KeyType:       types.KeyTypeHash,
			},
		},
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return err
	}

	w := dynamodb.NewTableExistsWaiter(svc)
	if err := w.Wait(ctx,
		&dynamodb.DescribeTableInput{TableName: aws.String(table)},
		2*time.Minute,
		func(o *dynamodb.TableExistsWaiterOptions) {
			o.MaxDelay = 5 * time.Second
			o.MinDelay = 1 * time.Second
		}); err != nil {
		return fmt.Errorf("timed out while waiting for table to become active: %w", err)
	}
	return nil
}
