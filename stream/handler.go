package stream

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/groundwork/store"
)

// Handler cascades deletes from DynamoDB stream events. Each child it marks
// deleted produces a stream event of its own, so the tree is torn down one
// level per invocation.
type Handler struct {
	cascade cascade
	logger  *slog.Logger
}

// NewHandler creates a stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cascade: cascade{store: s, logger: logger},
		logger:  logger,
	}
}

// HandleCascadeDelete propagates a newly set TTL to the fixture's children.
// It is meant to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "MODIFY" {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")

	// Only the transition from live to deleted cascades.
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	st := step{
		ref:       getStringAttr(record.Change.NewImage, "entity_ref"),
		parentRef: getStringAttr(record.Change.NewImage, "parent_ref"),
		uniquePKs: getStringListAttr(record.Change.NewImage, "_unique_pks"),
		ttl:       newTTL,
	}
	if st.ref == "" {
		return nil
	}

	h.logger.Info("processing cascade delete",
		"entityRef", st.ref,
		"parentRef", st.parentRef,
		"ttl", newTTL,
	)

	children, err := h.cascade.run(ctx, st)
	if err != nil {
		return err
	}

	h.logger.Info("cascade delete completed",
		"entityRef", st.ref,
		"childrenProcessed", len(children),
		"uniqueConstraints", len(st.uniquePKs),
	)
	return nil
}

func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeNumber {
		n, _ := strconv.ParseInt(v.Number(), 10, 64)
		return n
	}
	return 0
}

func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeList {
		return nil
	}
	var result []string
	for _, item := range v.List() {
		if item.DataType() == events.DataTypeString {
			result = append(result, item.String())
		}
	}
	return result
}
