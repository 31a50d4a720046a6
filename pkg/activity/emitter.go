package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events that do not name a channel.
const DefaultChannel = "strata"

// Config controls activity emission defaults supplied by DI/config.
type Config struct {
	Enabled bool
	Channel string
	// Verbs restricts emission to the listed verbs. Empty means all.
	Verbs []string
}

// Emitter fans out events to hooks while applying defaults.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	normalizedHooks := cloneHooks(hooks)
	var verbs map[string]struct{}
	for _, verb := range cfg.Verbs {
		verb = strings.TrimSpace(verb)
		if verb == "" {
			continue
		}
		if verbs == nil {
			verbs = map[string]struct{}{}
		}
		verbs[verb] = struct{}{}
	}
	return &Emitter{
		hooks:   normalizedHooks,
		enabled: cfg.Enabled && len(normalizedHooks) > 0,
		channel: channel,
		verbs:   verbs,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Emit forwards the event to all hooks, applying the default channel when
// missing and skipping verbs outside the configured filter.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if e.verbs != nil {
		if _, ok := e.verbs[strings.TrimSpace(event.Verb)]; !ok {
			return nil
		}
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	return Hooks(normalized)
}
