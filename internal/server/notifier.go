package server

import (
	"github.com/larosafrancesco289/voiceflow/internal/loader"
	"github.com/larosafrancesco289/voiceflow/internal/protocol"
	"github.com/larosafrancesco289/voiceflow/internal/registry"
)

// NewLoadNotifier translates model load transitions into protocol events
// and broadcasts them to every connected session. Delivery is best-effort
// through the registry, so a slow or dead client never affects the load.
func NewLoadNotifier(reg *registry.Registry) loader.NotifyFunc {
	return func(state loader.State) {
		switch state.Stage {
		case loader.StageReady:
			reg.Broadcast(protocol.Ready())
		case loader.StageError:
			reg.Broadcast(protocol.Error(state.Error))
		default:
			reg.Broadcast(protocol.Loading(string(state.Stage), state.Progress, state.Message))
		}
	}
}
