package log

import (
	"context"
)

type contextKey struct{}

var opContextKey = contextKey{}

// OpContext holds fields describing the save/load operation in flight,
// attached to every log line emitted through the *Ctx functions.
type OpContext struct {
	Operation   string // "save" or "load"
	ManifestID  string
	ClassID     string
	ContentKey  string
	StorageName string
}

// WithContext attaches oc to ctx.
func WithContext(ctx context.Context, oc *OpContext) context.Context {
	return context.WithValue(ctx, opContextKey, oc)
}

// FromContext retrieves the OpContext attached to ctx, or nil.
func FromContext(ctx context.Context) *OpContext {
	if ctx == nil {
		return nil
	}
	oc, _ := ctx.Value(opContextKey).(*OpContext)
	return oc
}

func appendOpFields(ctx context.Context, args []any) []any {
	oc := FromContext(ctx)
	if oc == nil {
		return args
	}
	fields := make([]any, 0, 10+len(args))
	if oc.Operation != "" {
		fields = append(fields, "operation", oc.Operation)
	}
	if oc.ManifestID != "" {
		fields = append(fields, "manifest_id", oc.ManifestID)
	}
	if oc.ClassID != "" {
		fields = append(fields, "class_id", oc.ClassID)
	}
	if oc.ContentKey != "" {
		fields = append(fields, "content_key", oc.ContentKey)
	}
	if oc.StorageName != "" {
		fields = append(fields, "storage_name", oc.StorageName)
	}
	return append(fields, args...)
}
