package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-strata/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts catalog activity events to a go-users ActivitySink so entity
// and layer changes land in the same audit trail as user actions.
type Hook struct {
	Sink usertypes.ActivitySink
	// Actor is used when an event carries no actor of its own.
	Actor uuid.UUID
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       recordData(normalized.Metadata),
		OccurredAt: normalized.OccurredAt,
	}
	if record.ActorID == uuid.Nil {
		record.ActorID = h.Actor
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// recordData detaches metadata from the event before handing it to the sink.
func recordData(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
