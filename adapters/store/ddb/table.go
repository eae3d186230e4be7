package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrPK = "PK"
	attrSK = "SK"

	pkDeployment   = "DEPLOYMENT"
	pkActivity     = "ACTIVITY"
	pkNotification = "NOTIFICATION"
)

func key(pk, sk string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		attrPK: &ddbTypes.AttributeValueMemberS{Value: pk},
		attrSK: &ddbTypes.AttributeValueMemberS{Value: sk},
	}
}

// marshalItem encodes v with its dynamodbav tags and adds the key attributes.
func marshalItem(pk, sk string, v any) (map[string]ddbTypes.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, err
	}
	for k, av := range key(pk, sk) {
		item[k] = av
	}
	return item, nil
}

func getItem(ctx context.Context, cli API, table, pk, sk string, out any) (bool, error) {
	res, err := cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if res.Item == nil {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(res.Item, out)
}

func putItem(ctx context.Context, cli API, table string, item map[string]ddbTypes.AttributeValue, cond string) error {
	in := &dynamodb.PutItemInput{TableName: aws.String(table), Item: item}
	if cond != "" {
		in.ConditionExpression = aws.String(cond)
	}
	_, err := cli.PutItem(ctx, in)
	return err
}

// deleteItem reports whether an item was removed.
func deleteItem(ctx context.Context, cli API, table, pk, sk string) (bool, error) {
	res, err := cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(table),
		Key:          key(pk, sk),
		ReturnValues: ddbTypes.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	return len(res.Attributes) > 0, nil
}

// queryAll loads every item of partition pk, following pagination.
func queryAll[T any](ctx context.Context, cli API, table, pk string) ([]*T, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pk},
		},
	}
	var out []*T
	for {
		res, err := cli.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, item := range res.Items {
			v := new(T)
			if err := attributevalue.UnmarshalMap(item, v); err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if len(res.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = res.LastEvaluatedKey
	}
}
