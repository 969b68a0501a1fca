package errors

// ERR enumerates the node's error codes. The teacher's real enum is
// protobuf-generated; this core has no gRPC surface, so it is a plain
// Go enum instead (see DESIGN.md).
type ERR int32

const (
	ERR_UNKNOWN ERR = iota

	// §7 Error handling design taxonomy.
	ERR_PROTOCOL_VIOLATION
	ERR_BAD_DATA
	ERR_TIMEOUT
	ERR_TRANSIENT_IO
	ERR_RESOURCE_EXHAUSTED
	ERR_CONSENSUS_STALL

	ERR_INVALID_ARGUMENT
	ERR_NOT_FOUND
	ERR_CONFIGURATION
	ERR_CONTEXT_CANCELED

	// §4.4 Mempool return-code taxonomy.
	ERR_TX_INVALID
	ERR_TX_LOW_FEE
	ERR_TX_TOO_BIG
	ERR_TX_OBSCURED
	ERR_TX_INSUFFICIENT_FEE_RESERVE
	ERR_TX_DEPENDENT_NOT_FOUND
	ERR_TX_DUPLICATE
	ERR_MEMPOOL_FULL

	// §4.2 task scheduler / §4.1 peer.
	ERR_TASK_ALREADY_EXISTS
	ERR_PEER_UNRESPONSIVE
	ERR_PEER_BANNED

	// §4.6 BBS.
	ERR_BBS_PROOF_OF_WORK
	ERR_BBS_PAYLOAD_TOO_LARGE
	ERR_BBS_UNKNOWN_CHANNEL
)

var errNames = map[ERR]string{
	ERR_UNKNOWN:                     "ERR_UNKNOWN",
	ERR_PROTOCOL_VIOLATION:          "ERR_PROTOCOL_VIOLATION",
	ERR_BAD_DATA:                    "ERR_BAD_DATA",
	ERR_TIMEOUT:                     "ERR_TIMEOUT",
	ERR_TRANSIENT_IO:                "ERR_TRANSIENT_IO",
	ERR_RESOURCE_EXHAUSTED:          "ERR_RESOURCE_EXHAUSTED",
	ERR_CONSENSUS_STALL:             "ERR_CONSENSUS_STALL",
	ERR_INVALID_ARGUMENT:            "ERR_INVALID_ARGUMENT",
	ERR_NOT_FOUND:                   "ERR_NOT_FOUND",
	ERR_CONFIGURATION:               "ERR_CONFIGURATION",
	ERR_CONTEXT_CANCELED:            "ERR_CONTEXT_CANCELED",
	ERR_TX_INVALID:                  "ERR_TX_INVALID",
	ERR_TX_LOW_FEE:                  "ERR_TX_LOW_FEE",
	ERR_TX_TOO_BIG:                  "ERR_TX_TOO_BIG",
	ERR_TX_OBSCURED:                 "ERR_TX_OBSCURED",
	ERR_TX_INSUFFICIENT_FEE_RESERVE: "ERR_TX_INSUFFICIENT_FEE_RESERVE",
	ERR_TX_DEPENDENT_NOT_FOUND:      "ERR_TX_DEPENDENT_NOT_FOUND",
	ERR_TX_DUPLICATE:                "ERR_TX_DUPLICATE",
	ERR_MEMPOOL_FULL:                "ERR_MEMPOOL_FULL",
	ERR_TASK_ALREADY_EXISTS:         "ERR_TASK_ALREADY_EXISTS",
	ERR_PEER_UNRESPONSIVE:           "ERR_PEER_UNRESPONSIVE",
	ERR_PEER_BANNED:                 "ERR_PEER_BANNED",
	ERR_BBS_PROOF_OF_WORK:           "ERR_BBS_PROOF_OF_WORK",
	ERR_BBS_PAYLOAD_TOO_LARGE:       "ERR_BBS_PAYLOAD_TOO_LARGE",
	ERR_BBS_UNKNOWN_CHANNEL:         "ERR_BBS_UNKNOWN_CHANNEL",
}

func (e ERR) String() string {
	if name, ok := errNames[e]; ok {
		return name
	}

	return "ERR_UNKNOWN"
}
