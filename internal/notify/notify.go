// Package notify holds the delivery transports used by the reminder scheduler.
package notify

import (
	"context"
	"sort"
	"strings"

	"github.com/contest-radar/backend/internal/domain"
)

// Channel delivers a message to one destination. Send reports whether the
// transport confirmed delivery; transport errors are logged, not returned.
type Channel interface {
	Name() domain.Channel
	Send(ctx context.Context, destination, subject, body string) bool
}

// Registry holds the channels that are configured in this process
type Registry struct {
	channels map[domain.Channel]Channel
}

// NewRegistry registers the given channels; nil entries are ignored
func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[domain.Channel]Channel)}
	for _, ch := range channels {
		if ch != nil {
			r.channels[ch.Name()] = ch
		}
	}
	return r
}

// Get returns the transport for a channel
func (r *Registry) Get(name domain.Channel) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// Names lists the registered channels in a stable order
func (r *Registry) Names() []domain.Channel {
	names := make([]domain.Channel, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// stripNewlines keeps header values on a single line
func stripNewlines(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
