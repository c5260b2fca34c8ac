package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-read-marker/internal/domain"
)

// itemAPI is the part of *dynamodb.Client the marker repo needs.
type itemAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// MarkerRepo persists one marker record per conversation in the markers table.
type MarkerRepo struct {
	client    itemAPI
	tableName string
	now       func() time.Time
}

func NewMarkerRepo(client itemAPI, tableName string) *MarkerRepo {
	return &MarkerRepo{client: client, tableName: tableName, now: time.Now}
}

// Get returns the marked message id for conversationID; a missing item is not an error.
func (r *MarkerRepo) Get(ctx context.Context, conversationID string) (string, bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldConversationID, conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get marker %s: %w", conversationID, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var m domain.Marker
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return "", false, fmt.Errorf("unmarshal marker %s: %w", conversationID, err)
	}
	return m.MessageID, m.MessageID != "", nil
}

// Set upserts the marker record for conversationID.
func (r *MarkerRepo) Set(ctx context.Context, conversationID, messageID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldMessageID: messageID,
		fieldUpdatedAt: r.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldConversationID, conversationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		return fmt.Errorf("set marker %s: %w", conversationID, err)
	}
	return nil
}
