package ctxutil

import "context"

type requestKey struct{}

// RequestTags identifies one API call in logs across the HTTP layer and the
// services it fans out to. The middleware stores a pointer so handlers can
// tag the dataset after binding and the request log still sees it.
type RequestTags struct {
	TraceID        string
	RequestID      string
	IdempotencyKey string
	Dataset        string
}

func WithRequestTags(ctx context.Context, tags *RequestTags) context.Context {
	return context.WithValue(ctx, requestKey{}, tags)
}

func RequestTagsFrom(ctx context.Context) *RequestTags {
	if tags, ok := ctx.Value(requestKey{}).(*RequestTags); ok {
		return tags
	}
	return nil
}

// TagDataset records the dataset a request targets. No-op outside a request.
func TagDataset(ctx context.Context, dataset string) {
	if tags := RequestTagsFrom(ctx); tags != nil && dataset != "" {
		tags.Dataset = dataset
	}
}

// LogFields returns the non-empty tags as logger key/value pairs.
func LogFields(ctx context.Context) []any {
	tags := RequestTagsFrom(ctx)
	if tags == nil {
		return nil
	}
	var out []any
	for _, kv := range [...]struct{ k, v string }{
		{"trace_id", tags.TraceID},
		{"request_id", tags.RequestID},
		{"idempotency_key", tags.IdempotencyKey},
		{"dataset", tags.Dataset},
	} {
		if kv.v != "" {
			out = append(out, kv.k, kv.v)
		}
	}
	return out
}
