package stream

import (
	"golang.org/x/time/rate"

	"github.com/hyp3rd/hyperstream"
)

// provider is the plugin's view of its context.
type provider struct {
	pc *PluginContext
}

var _ hyperstream.Provider = (*provider)(nil)

func (p *provider) ToolConfig() string { return p.pc.toolConfig }
func (p *provider) Io() hyperstream.Io { return p.pc.io }
func (p *provider) Logger() hyperstream.Logger { return p.pc.logger }
func (p *provider) GetOutputAnchor(name string) hyperstream.OutputAnchor {
	return p.pc.outputAnchor(name)
}

// pluginIo forwards plugin messages to the engine. Tool progress is throttled to
// Config.ProgressRate updates per second; the final 100% is always delivered.
type pluginIo struct {
	pc      *PluginContext
	limiter *rate.Limiter
}

func newPluginIo(pc *PluginContext) *pluginIo {
	pio := &pluginIo{pc: pc}

	if pc.config.ProgressRate > 0 {
		pio.limiter = rate.NewLimiter(rate.Limit(pc.config.ProgressRate), 1)
	}

	return pio
}

var _ hyperstream.Io = (*pluginIo)(nil)

// Error sends an error message to the engine.
func (pio *pluginIo) Error(msg string) {
	pio.pc.logger.Error(msg)
	pio.pc.message(hyperstream.StatusError, msg)
}

// Warn sends a warning to the engine.
func (pio *pluginIo) Warn(msg string) {
	pio.pc.logger.Warn(msg)
	pio.pc.message(hyperstream.StatusWarning, msg)
}

// Info sends an informational message to the engine.
func (pio *pluginIo) Info(msg string) {
	pio.pc.logger.Info(msg)
	pio.pc.message(hyperstream.StatusInfo, msg)
}

// UpdateProgress reports tool progress, clamped to [0, 1].
func (pio *pluginIo) UpdateProgress(progress float64) {
	progress = min(max(progress, 0), 1)

	if pio.pc.engine == nil {
		return
	}

	if pio.limiter != nil && progress < 1 && !pio.limiter.Allow() {
		return
	}

	pio.pc.engine.OutputToolProgress(pio.pc.toolID, progress)
}

// NotifyFileInput tells the engine the plugin read a file.
func (pio *pluginIo) NotifyFileInput(path string) {
	pio.pc.message(hyperstream.StatusFileInput, path)
}

// NotifyFileOutput tells the engine the plugin wrote a file.
func (pio *pluginIo) NotifyFileOutput(path string) {
	pio.pc.message(hyperstream.StatusFileOutput, path)
}
