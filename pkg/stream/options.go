package stream

import (
	"github.com/hyp3rd/hyperstream"
)

// Option configures a PluginContext.
type Option func(*PluginContext)

// WithEngine sets the host engine that receives messages and progress.
func WithEngine(engine hyperstream.Engine) Option {
	return func(pc *PluginContext) {
		pc.engine = engine
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger hyperstream.Logger) Option {
	return func(pc *PluginContext) {
		if logger != nil {
			pc.logger = logger
		}
	}
}

// WithConfig replaces the default configuration.
func WithConfig(config hyperstream.Config) Option {
	return func(pc *PluginContext) {
		pc.config = config
	}
}

// WithLayoutResolver sets how input schemas are mapped to record layouts.
func WithLayoutResolver(resolver hyperstream.LayoutResolver) Option {
	return func(pc *PluginContext) {
		if resolver != nil {
			pc.resolver = resolver
		}
	}
}

// WithToolConfig sets the configuration blob handed to the plugin through its provider.
func WithToolConfig(toolConfig string) Option {
	return func(pc *PluginContext) {
		pc.toolConfig = toolConfig
	}
}

// WithHooks sets the registry whose hooks observe lifecycle events. Global hooks fire either way.
func WithHooks(registry *hyperstream.HookRegistry) Option {
	return func(pc *PluginContext) {
		pc.hooks = registry
	}
}

// WithMetricsHandler sets a handler that receives every anchor metrics snapshot, in addition
// to the globally registered handlers.
func WithMetricsHandler(handler hyperstream.AnchorMetricsHandler) Option {
	return func(pc *PluginContext) {
		pc.metricsHandler = handler
	}
}
