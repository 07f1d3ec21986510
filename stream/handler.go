// Package stream keeps a cache Store in step with DynamoDB tables by applying
// DynamoDB Streams events and Scan pages to it.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/arbor/store"
)

// Stream event names.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// TTLAttribute is the attribute whose first assignment marks an item as deleted.
const TTLAttribute = "ttl"

// Handler applies DynamoDB stream records to a Store.
type Handler struct {
	store    *store.Store
	registry *store.Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler. Tables are resolved to segments
// through registry.
func NewHandler(s *store.Store, registry *store.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = store.NewRegistry()
	}
	return &Handler{
		store:    s,
		registry: registry,
		logger:   logger,
	}
}

// HandleEvent applies every record of a stream event in order.
// It is designed to be used as an AWS Lambda handler with
// ReportBatchItemFailures enabled. Records from tables without a registered
// segment are skipped. Processing stops at the first failing record, which is
// reported in the response so a retry resumes there instead of re-applying
// the records before it.
func (h *Handler) HandleEvent(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	if h.registry.Tables() == 0 && len(event.Records) > 0 {
		h.logger.Warn("no tables registered, stream batch ignored",
			"records", len(event.Records),
		)
	}

	applied := 0
	for _, record := range event.Records {
		err := ctx.Err()
		if err == nil {
			var ok bool
			ok, err = h.processRecord(record)
			if ok && err == nil {
				applied++
			}
		}
		if err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"eventName", record.EventName,
				"sequenceNumber", record.Change.SequenceNumber,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: record.Change.SequenceNumber,
			})
			break
		}
	}

	h.logger.Info("stream batch processed",
		"records", len(event.Records),
		"applied", applied,
		"failed", len(resp.BatchItemFailures),
	)
	return resp, nil
}

// processRecord applies a single record. It reports whether the record
// touched the store.
func (h *Handler) processRecord(record events.DynamoDBEventRecord) (bool, error) {
	table := TableName(record.EventSourceArn)
	seg, ok := h.registry.Lookup(table)
	if !ok {
		h.logger.Debug("skipping record for unregistered table",
			"eventID", record.EventID,
			"table", table,
		)
		return false, nil
	}

	switch record.EventName {
	case EventInsert:
		data, err := DecodeImage(record.Change.NewImage)
		if err != nil {
			return false, err
		}
		if _, err := h.store.Reactive(seg, data); err != nil {
			return false, fmt.Errorf("insert into %s: %w", seg.Key(), err)
		}
		return true, nil

	case EventModify:
		oldTTL := getNumberAttr(record.Change.OldImage, TTLAttribute)
		newTTL := getNumberAttr(record.Change.NewImage, TTLAttribute)
		if oldTTL == 0 && newTTL != 0 {
			return true, h.remove(seg, record.Change.Keys, record.Change.NewImage)
		}

		data, err := DecodeImage(record.Change.NewImage)
		if err != nil {
			return false, err
		}
		if _, err := h.store.Refresh(seg, data); err != nil {
			return false, fmt.Errorf("refresh %s: %w", seg.Key(), err)
		}
		return true, nil

	case EventRemove:
		return true, h.remove(seg, record.Change.Keys, record.Change.OldImage)
	}

	return false, nil
}

// remove deletes the entity named by the record keys, falling back to the
// image when the keys do not carry the segment's id field.
func (h *Handler) remove(seg *store.Segment, keys, image map[string]events.DynamoDBAttributeValue) error {
	id, err := recordID(seg, keys)
	if err != nil || id == nil {
		id, err = recordID(seg, image)
	}
	if err != nil {
		return err
	}
	if id == nil {
		return fmt.Errorf("remove from %s: %w", seg.Key(), store.ErrMissingID)
	}

	res := h.store.Delete(seg, id)
	h.logger.Debug("cache entity deleted",
		"partition", res.Partition,
		"id", res.ID,
		"outcome", res.Outcome.String(),
		"cascaded", len(res.Cascade),
	)
	if res.Outcome == store.Removed && h.registry.HasChildren(seg.Key()) {
		var owned []string
		for _, rel := range h.registry.ChildrenOf(seg.Key()) {
			if rel.Owned {
				owned = append(owned, rel.Field)
			}
		}
		h.logger.Debug("cascaded into owned children",
			"partition", res.Partition,
			"id", res.ID,
			"fields", owned,
		)
	}
	if err := res.Err(); err != nil {
		h.logger.Warn("cascade incomplete",
			"partition", res.Partition,
			"id", res.ID,
			"error", err,
		)
	}
	return nil
}

func recordID(seg *store.Segment, image map[string]events.DynamoDBAttributeValue) (any, error) {
	if len(image) == 0 {
		return nil, nil
	}
	obj, err := DecodeImage(image)
	if err != nil {
		return nil, err
	}
	return obj.Get(seg.IDField()), nil
}

// Seed writes a page of items read from table (e.g., from Scan or Query) into
// the store, as if each had been inserted.
func (h *Handler) Seed(table string, items []map[string]types.AttributeValue) error {
	seg, ok := h.registry.Lookup(table)
	if !ok {
		return fmt.Errorf("seed %s: no segment registered", table)
	}

	for i, item := range items {
		data, err := DecodeItem(item)
		if err != nil {
			return fmt.Errorf("seed %s item %d: %w", table, i, err)
		}
		if _, err := h.store.Reactive(seg, data); err != nil {
			return fmt.Errorf("seed %s item %d: %w", table, i, err)
		}
	}

	h.logger.Info("seeded cache from table",
		"table", table,
		"items", len(items),
	)
	return nil
}
