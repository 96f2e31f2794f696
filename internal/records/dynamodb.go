// Package records persists finalized crop records.
package records

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tendant/post-import-pipeline/internal/pipeline"
)

// DynamoStore writes crop records to a DynamoDB table.
type DynamoStore struct {
	api   *dynamodb.Client
	table string
}

// NewDynamoStore creates a store for the named table.
func NewDynamoStore(api *dynamodb.Client, table string) *DynamoStore {
	return &DynamoStore{api: api, table: table}
}

// PutCropRecord writes one finalized record. Guess counters start at zero;
// the serving side owns them afterwards.
func (s *DynamoStore) PutCropRecord(ctx context.Context, rec pipeline.CropRecord) error {
	str := func(v string) types.AttributeValue {
		return &types.AttributeValueMemberS{Value: v}
	}
	num := func(v int64) types.AttributeValue {
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
	}

	item := map[string]types.AttributeValue{
		"uuid":              str(rec.UUID),
		"id":                num(rec.ID),
		"orig":              str(rec.OrigName),
		"crop":              str(rec.CropName),
		"rating":            str(rec.Rating),
		"score":             num(rec.Score),
		"fav_count":         num(rec.FavCount),
		"orig_width":        num(rec.OrigWidth),
		"orig_height":       num(rec.OrigHeight),
		"crop_left":         num(int64(rec.CropLeft)),
		"crop_top":          num(int64(rec.CropTop)),
		"crop_width":        num(int64(rec.CropWidth)),
		"crop_height":       num(int64(rec.CropHeight)),
		"import_run_id":     num(rec.RunID),
		"correct_guesses":   num(0),
		"incorrect_guesses": num(0),
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item for %d: %w", rec.ID, err)
	}
	return nil
}
