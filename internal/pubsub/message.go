// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Metadata keys.
const (
	MetadataDedupKey      = "dedup_key"
	MetadataCorrelationID = "correlation_id"
	MetadataType          = "type"
)

// NewMessage marshals v as the payload. dedupKey identifies the logical
// message across redeliveries and republishes; an empty key falls back to
// the message UUID.
func NewMessage(msgType, dedupKey string, v any) (*message.Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msgType, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataType, msgType)
	if dedupKey != "" {
		msg.Metadata.Set(MetadataDedupKey, dedupKey)
	}
	return msg, nil
}

// Decode unmarshals the payload into v.
func Decode(msg *message.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("unmarshal %s message %s: %w", msg.Metadata.Get(MetadataType), msg.UUID, err)
	}
	return nil
}

// dedupKey returns the deduplication key of msg.
func dedupKey(msg *message.Message) string {
	if k := msg.Metadata.Get(MetadataDedupKey); k != "" {
		return k
	}
	return msg.UUID
}
