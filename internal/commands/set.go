package commands

import (
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// SetCommand is the shared base of settings writes.
//
// When the device accepts the write the new value is replayed into the
// event cache of the paired query, so subscribers observe the change
// without an extra round trip. The same replay runs when the
// confirmation arrives over the broker instead of the portal.
type SetCommand struct {
	jsonCommand
	apply func(bus protocol.EventBus, args map[string]any)
}

func (c SetCommand) HandleResponse(bus protocol.EventBus, resp any) protocol.CommandResult {
	result := handleExecute(resp)
	if result.State == protocol.HandlingSuccess && c.apply != nil {
		c.apply(bus, c.args)
	}
	return result
}

// HandleP2PResponse digests the broker-side confirmation of this write.
func (c SetCommand) HandleP2PResponse(bus protocol.EventBus, response map[string]any) protocol.HandlingState {
	return c.HandleResponse(bus, response).State
}
