// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package docstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB attribute names.
//
// Table schema:
//   - Partition key: collection (string)
//   - Sort key: id (string)
//
//	aws dynamodb create-table \
//	  --table-name ruvector-documents \
//	  --attribute-definitions AttributeName=collection,AttributeType=S AttributeName=id,AttributeType=S \
//	  --key-schema AttributeName=collection,KeyType=HASH AttributeName=id,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
const (
	attrCollection = "collection"
	attrID         = "id"
	attrData       = "data"
)

// DynamoClient is the subset of the DynamoDB API the store uses.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore stores documents in a single DynamoDB table.
type DynamoStore struct {
	client DynamoClient
	table  string
}

// NewDynamo wraps an existing client.
func NewDynamo(client DynamoClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// OpenDynamo loads the default AWS configuration chain. A non-empty
// endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
func OpenDynamo(ctx context.Context, region, endpoint, table string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamo(client, table), nil
}

// Name implements Store.
func (d *DynamoStore) Name() string { return "dynamodb" }

func (d *DynamoStore) key(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrCollection: &types.AttributeValueMemberS{Value: collection},
		attrID:         &types.AttributeValueMemberS{Value: id},
	}
}

// Put implements Store.
func (d *DynamoStore) Put(ctx context.Context, collection, id string, data []byte) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	item := d.key(collection, id)
	item[attrData] = &types.AttributeValueMemberB{Value: data}
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get implements Store.
func (d *DynamoStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(collection, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return dataAttr(out.Item, collection, id)
}

// List implements Store. Query returns items in sort key order.
func (d *DynamoStore) List(ctx context.Context, collection string) ([]Document, error) {
	if collection == "" {
		return nil, ErrInvalidKey
	}
	p := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": attrCollection,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: collection},
		},
		ConsistentRead: aws.Bool(true),
	})

	var docs []Document
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		for _, item := range page.Items {
			idAttr, ok := item[attrID].(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("list %s: item without string id", collection)
			}
			data, err := dataAttr(item, collection, idAttr.Value)
			if err != nil {
				return nil, err
			}
			docs = append(docs, Document{ID: idAttr.Value, Data: data})
		}
	}
	return docs, nil
}

// Delete implements Store.
func (d *DynamoStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.key(collection, id),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close implements Store.
func (d *DynamoStore) Close() error { return nil }

func dataAttr(item map[string]types.AttributeValue, collection, id string) ([]byte, error) {
	b, ok := item[attrData].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("%s/%s: missing binary data attribute", collection, id)
	}
	return b.Value, nil
}
