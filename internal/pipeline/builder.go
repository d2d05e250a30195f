package pipeline

import (
	"time"

	"firestige.xyz/responder/internal/capture"
	"firestige.xyz/responder/internal/responder"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			Respond: true,
			Retry:   DefaultRetry(),
		},
	}
}

// WithID sets the pipeline ID.
func (b *Builder) WithID(id int) *Builder {
	b.config.ID = id
	return b
}

// WithDriver sets the capture driver the pipeline polls.
func (b *Builder) WithDriver(d *capture.Driver) *Builder {
	b.config.Driver = d
	return b
}

// WithRespond enables or disables crafting responses to accepted frames.
func (b *Builder) WithRespond(enabled bool) *Builder {
	b.config.Respond = enabled
	return b
}

// WithCraftOptions sets the options applied to every crafted response.
func (b *Builder) WithCraftOptions(opts ...responder.Option) *Builder {
	b.config.CraftOptions = opts
	return b
}

// WithLimiter sets the per-peer response limiter. It may be shared by pipelines.
func (b *Builder) WithLimiter(l *responder.Limiter) *Builder {
	b.config.Limiter = l
	return b
}

// WithRetry sets the receive failure policy.
func (b *Builder) WithRetry(maxFailures int, initial, max time.Duration) *Builder {
	b.config.Retry = RetryPolicy{MaxFailures: maxFailures, InitialInterval: initial, MaxInterval: max}
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
