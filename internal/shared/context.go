package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user's id in context. Authentication and
// permission checks happen upstream; the engine only needs the identity for
// created_by columns and audit records.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user's id from context.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
