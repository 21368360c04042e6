package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated staff ID in context.
func ContextWithActor(ctx context.Context, staffID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, staffID)
}

// ActorFromContext extracts the authenticated staff ID from context.
// The second return is false when no actor is attached to the request.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}
