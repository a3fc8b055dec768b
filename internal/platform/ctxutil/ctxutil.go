package ctxutil

import "context"

type runDataKey struct{}

// RunData identifies one caller invocation (a CLI command or an upstream request).
type RunData struct {
	RunID   string
	Caller  string
	TraceID string
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func WithRunData(ctx context.Context, rd *RunData) context.Context {
	return context.WithValue(Default(ctx), runDataKey{}, rd)
}

func GetRunData(ctx context.Context) *RunData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(runDataKey{}).(*RunData); ok {
		return rd
	}
	return nil
}

// RunID returns the invocation id carried by ctx, or "".
func RunID(ctx context.Context) string {
	if rd := GetRunData(ctx); rd != nil {
		return rd.RunID
	}
	return ""
}
