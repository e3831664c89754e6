package mumble

import "github.com/gomumble/engine/internal/dispatch"

// Listeners is the embedder-supplied observer. See
// internal/dispatch.Listeners for the full method set.
type Listeners = dispatch.Listeners

// NopListener is a Listeners with every method a no-op. Embed it in a
// listener struct and override only the methods needed.
type NopListener = dispatch.NopListener
