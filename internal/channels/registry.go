package channels

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps channel names to running adapters, letting the
// scheduler deliver a task's result to "whichever channel the task
// came from" without depending on concrete adapter types.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Add registers ch under its own Name().
func (r *Registry) Add(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Name()] = ch
}

// Get returns the channel registered under name, if any.
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

// All returns every registered channel.
func (r *Registry) All() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// Send implements scheduler.ChannelRegistry: deliver text to chatID on
// the named channel. An unknown channel name is reported as an error
// for the caller to log and drop.
func (r *Registry) Send(ctx context.Context, channel, chatID, text string) error {
	ch, ok := r.Get(channel)
	if !ok {
		return fmt.Errorf("channels: unknown channel %q", channel)
	}
	_, err := ch.Send(ctx, OutboundMessage{ChatID: chatID, Text: text, DisableNotification: true})
	return err
}
