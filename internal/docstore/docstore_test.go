// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadger(BadgerConfig{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{
		"memory":   NewMemory(),
		"badger":   b,
		"dynamodb": NewDynamo(newFakeDynamo(2), "docs"),
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			if _, err := s.Get(ctx, "jobs", "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing = %v, want ErrNotFound", err)
			}
			for _, id := range []string{"c", "a", "b"} {
				if err := s.Put(ctx, "jobs", id, []byte("v-"+id)); err != nil {
					t.Fatalf("Put %s: %v", id, err)
				}
			}
			if err := s.Put(ctx, "manifests", "a", []byte("other")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, "jobs", "a", []byte("v-a2")); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			got, err := s.Get(ctx, "jobs", "a")
			if err != nil || string(got) != "v-a2" {
				t.Fatalf("Get a = %q, %v", got, err)
			}

			docs, err := s.List(ctx, "jobs")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
				t.Fatalf("List ids = %v, want [a b c]", ids)
			}

			if err := s.Delete(ctx, "jobs", "b"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "jobs", "b"); err != nil {
				t.Fatalf("Delete missing should be a no-op: %v", err)
			}
			if _, err := s.Get(ctx, "jobs", "b"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get deleted = %v, want ErrNotFound", err)
			}
			docs, _ = s.List(ctx, "manifests")
			if len(docs) != 1 || string(docs[0].Data) != "other" {
				t.Fatalf("collections leaked: %+v", docs)
			}

			if err := s.Put(ctx, "", "x", nil); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("empty collection = %v, want ErrInvalidKey", err)
			}
			if err := s.Put(ctx, "jobs", "a\x00b", nil); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("separator in id = %v, want ErrInvalidKey", err)
			}
		})
	}
}

type job struct {
	ID       string  `json:"id"`
	Progress float64 `json:"progress"`
}

func TestJSONHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := Instrument(NewMemory())

	if err := PutJSON(ctx, s, "learning-jobs", "j1", job{ID: "j1", Progress: 0.5}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	if err := PutJSON(ctx, s, "learning-jobs", "j2", job{ID: "j2", Progress: 1}); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	var got job
	if err := GetJSON(ctx, s, "learning-jobs", "j1", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Progress != 0.5 {
		t.Errorf("Progress = %v, want 0.5", got.Progress)
	}

	all, err := ListJSON[job](ctx, s, "learning-jobs")
	if err != nil {
		t.Fatalf("ListJSON: %v", err)
	}
	if len(all) != 2 || all[1].ID != "j2" {
		t.Errorf("ListJSON = %+v", all)
	}

	if err := s.Put(ctx, "learning-jobs", "bad", []byte("{")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := ListJSON[job](ctx, s, "learning-jobs"); err == nil {
		t.Error("ListJSON should fail on a garbled document")
	}
	if s.Name() != "memory" {
		t.Errorf("Name = %q", s.Name())
	}
}

func TestMemoryStore_CopiesPayloads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	buf := []byte("abc")
	_ = s.Put(ctx, "c", "id", buf)
	buf[0] = 'X'
	got, _ := s.Get(ctx, "c", "id")
	if string(got) != "abc" {
		t.Fatalf("stored payload aliased caller buffer: %q", got)
	}

	_ = s.Close()
	if err := s.Put(ctx, "c", "id", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Put after Close = %v, want ErrClosed", err)
	}
}

// fakeDynamo is a single-table DynamoDB stand-in that pages Query results.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string][]byte
	pageSize int
}

func newFakeDynamo(pageSize int) *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string][]byte), pageSize: pageSize}
}

func keyOf(m map[string]types.AttributeValue) (string, string) {
	c := m[attrCollection].(*types.AttributeValueMemberS).Value
	id := m[attrID].(*types.AttributeValueMemberS).Value
	return c, id
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, id := keyOf(in.Item)
	if f.items[c] == nil {
		f.items[c] = make(map[string][]byte)
	}
	f.items[c][id] = append([]byte(nil), in.Item[attrData].(*types.AttributeValueMemberB).Value...)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, id := keyOf(in.Key)
	data, ok := f.items[c][id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item(c, id, data)}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := in.ExpressionAttributeValues[":c"].(*types.AttributeValueMemberS).Value
	ids := make([]string, 0, len(f.items[c]))
	for id := range f.items[c] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		_, after := keyOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(ids, after) + 1
	}
	end := start + f.pageSize
	if end > len(ids) {
		end = len(ids)
	}
	out := &dynamodb.QueryOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, item(c, id, f.items[c][id]))
	}
	if end < len(ids) {
		out.LastEvaluatedKey = item(c, ids[end-1], nil)
		delete(out.LastEvaluatedKey, attrData)
	}
	return out, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, id := keyOf(in.Key)
	delete(f.items[c], id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func item(c, id string, data []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrCollection: &types.AttributeValueMemberS{Value: c},
		attrID:         &types.AttributeValueMemberS{Value: id},
		attrData:       &types.AttributeValueMemberB{Value: append([]byte(nil), data...)},
	}
}
