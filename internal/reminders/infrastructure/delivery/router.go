package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
)

// ErrNoRoute is returned for a channel with no deliverer.
var ErrNoRoute = errors.New("no deliverer for channel")

// Router picks a deliverer by reminder channel.
type Router struct {
	routes map[domain.Channel]domain.Deliverer
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[domain.Channel]domain.Deliverer)}
}

// Route sends reminders on the given channels to d.
func (r *Router) Route(d domain.Deliverer, channels ...domain.Channel) *Router {
	for _, c := range channels {
		r.routes[c] = d
	}
	return r
}

// Deliver forwards to the channel's deliverer. An unrouted channel is a
// permanent failure.
func (r *Router) Deliver(ctx context.Context, rem *domain.Reminder) error {
	d, ok := r.routes[rem.Channel]
	if !ok {
		return domain.Permanent(fmt.Errorf("%w %q", ErrNoRoute, rem.Channel))
	}
	return d.Deliver(ctx, rem)
}
