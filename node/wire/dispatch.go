package wire

import "github.com/BigRomanov/beam-1/errors"

// proofQueryCommands are routed to the generic ProofQuery passthrough
// rather than having a dedicated struct, since this core never interprets
// their payload itself (§6).
var proofQueryCommands = map[Command]bool{
	CmdGetHdr:               true,
	CmdEnumHdrs:             true,
	CmdGetBodyPack:          true,
	CmdBodyPack:             true,
	CmdGetTransaction:       true,
	CmdGetProofState:        true,
	CmdGetProofKernel:       true,
	CmdGetProofKernel2:      true,
	CmdGetProofUtxo:         true,
	CmdGetProofShieldedOutp: true,
	CmdGetProofShieldedInp:  true,
	CmdGetProofAsset:        true,
	CmdGetShieldedList:      true,
	CmdGetProofChainWork:    true,
	CmdPeerInfo:             true,
	CmdPeerInfoSelf:         true,
	CmdGetExternalAddr:      true,
	CmdBbsHaveMsg:           true,
	CmdBbsGetMsg:            true,
	CmdGetEvents:            true,
	CmdBlockFinalization:    true,
	CmdGetStateSummary:      true,
	CmdContractVarsEnum:     true,
	CmdContractLogsEnum:     true,
	CmdGetContractVar:       true,
	CmdGetContractLogProof:  true,
	CmdGetShieldedOutputsAt: true,
}

// NewMessage returns a zero-value Message for cmd, ready for Decode.
func NewMessage(cmd Command) (Message, error) {
	switch cmd {
	case CmdAuthentication:
		return &Authentication{}, nil
	case CmdLogin:
		return &Login{}, nil
	case CmdBye:
		return &Bye{}, nil
	case CmdPing:
		return &Ping{}, nil
	case CmdPong:
		return &Pong{}, nil
	case CmdNewTip:
		return &NewTip{}, nil
	case CmdGetHdrPack:
		return &GetHdrPack{}, nil
	case CmdHdrPack:
		return &HdrPack{}, nil
	case CmdGetBody:
		return &GetBody{}, nil
	case CmdBody:
		return &Body{}, nil
	case CmdNewTransaction:
		return &NewTransaction{}, nil
	case CmdHaveTransaction:
		return &HaveTransaction{}, nil
	case CmdSetDependentContext:
		return &SetDependentContext{}, nil
	case CmdBbsMsg:
		return &BbsMsg{}, nil
	case CmdBbsSubscribe:
		return &BbsSubscribe{}, nil
	case CmdBbsResetSync:
		return &BbsResetSync{}, nil
	case CmdDataMissing:
		return &DataMissing{}, nil
	}

	if proofQueryCommands[cmd] {
		return &ProofQuery{Cmd: cmd}, nil
	}

	return nil, errors.NewProtocolViolationError("unknown command tag %d", byte(cmd))
}
