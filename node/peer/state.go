package peer

import (
	"context"

	"github.com/looplab/fsm"
)

// Connection states (spec §4.1): Dialing -> HandshakingSecure ->
// HandshakingAuth -> Active -> Draining -> Closed.
const (
	StateDialing           = "dialing"
	StateHandshakingSecure = "handshaking_secure"
	StateHandshakingAuth   = "handshaking_auth"
	StateActive            = "active"
	StateDraining          = "draining"
	StateClosed            = "closed"
)

const (
	EventSecureEstablished = "secure_established"
	EventAuthenticated     = "authenticated"
	EventDrain             = "drain"
	EventClose             = "close"
)

// newFSM builds the connection state machine (grounded on
// services/blockchain/fsm.go's fsm.NewFSM usage), with callbacks wired to
// the owning Peer's lifecycle hooks.
func newFSM(initial string, onEnterActive, onEnterClosed func()) *fsm.FSM {
	return fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: EventSecureEstablished, Src: []string{StateDialing}, Dst: StateHandshakingSecure},
			{Name: EventAuthenticated, Src: []string{StateHandshakingSecure, StateHandshakingAuth}, Dst: StateActive},
			{Name: EventDrain, Src: []string{StateActive}, Dst: StateDraining},
			{Name: EventClose, Src: []string{StateDialing, StateHandshakingSecure, StateHandshakingAuth, StateActive, StateDraining}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_" + StateActive: func(_ context.Context, e *fsm.Event) {
				if onEnterActive != nil {
					onEnterActive()
				}
			},
			"enter_" + StateClosed: func(_ context.Context, e *fsm.Event) {
				if onEnterClosed != nil {
					onEnterClosed()
				}
			},
		},
	)
}
