package auth

import "context"

type contextKey string

const actorKey contextKey = "actor"

// Staff roles. Every state-changing operation records the acting staff member,
// so handlers resolve an Actor before calling into the services.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
	RolePharmacist   = "pharmacist"
)

// Actor identifies the staff member performing a request.
type Actor struct {
	ID   string
	Name string
	Role string
}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the actor bound to ctx. The second return value is
// false when no authentication middleware ran for the request.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
