package errors

var (
	ErrUnknown            = New(ERR_UNKNOWN, "unknown error")
	ErrProtocolViolation  = New(ERR_PROTOCOL_VIOLATION, "protocol violation")
	ErrBadData            = New(ERR_BAD_DATA, "bad data")
	ErrTimeout            = New(ERR_TIMEOUT, "timeout")
	ErrTransientIO        = New(ERR_TRANSIENT_IO, "transient i/o error")
	ErrResourceExhausted  = New(ERR_RESOURCE_EXHAUSTED, "resource exhausted")
	ErrConsensusStall     = New(ERR_CONSENSUS_STALL, "consensus stall")
	ErrInvalidArgument    = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrNotFound           = New(ERR_NOT_FOUND, "not found")
	ErrConfiguration      = New(ERR_CONFIGURATION, "configuration error")
	ErrContextCanceled    = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrTxInvalid          = New(ERR_TX_INVALID, "transaction invalid")
	ErrTxLowFee           = New(ERR_TX_LOW_FEE, "transaction fee below minimum")
	ErrTxTooBig           = New(ERR_TX_TOO_BIG, "transaction too big")
	ErrTxObscured         = New(ERR_TX_OBSCURED, "transaction obscured")
	ErrTxInsufficientFee  = New(ERR_TX_INSUFFICIENT_FEE_RESERVE, "insufficient fee reserve for shielded outputs")
	ErrTxDependentMissing = New(ERR_TX_DEPENDENT_NOT_FOUND, "dependent context not found")
	ErrTxDuplicate        = New(ERR_TX_DUPLICATE, "transaction already known")
	ErrMempoolFull        = New(ERR_MEMPOOL_FULL, "mempool full")
	ErrTaskAlreadyExists  = New(ERR_TASK_ALREADY_EXISTS, "task already exists for key")
	ErrPeerUnresponsive   = New(ERR_PEER_UNRESPONSIVE, "peer unresponsive")
	ErrPeerBanned         = New(ERR_PEER_BANNED, "peer banned")
	ErrBbsProofOfWork     = New(ERR_BBS_PROOF_OF_WORK, "bbs message fails proof of work")
	ErrBbsPayloadTooLarge = New(ERR_BBS_PAYLOAD_TOO_LARGE, "bbs payload exceeds 1 MiB")
	ErrBbsUnknownChannel  = New(ERR_BBS_UNKNOWN_CHANNEL, "bbs channel unknown")
)

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}

func NewProtocolViolationError(message string, params ...interface{}) error {
	return New(ERR_PROTOCOL_VIOLATION, message, params...)
}

func NewBadDataError(message string, params ...interface{}) error {
	return New(ERR_BAD_DATA, message, params...)
}

func NewTimeoutError(message string, params ...interface{}) error {
	return New(ERR_TIMEOUT, message, params...)
}

func NewTransientIOError(message string, params ...interface{}) error {
	return New(ERR_TRANSIENT_IO, message, params...)
}

func NewResourceExhaustedError(message string, params ...interface{}) error {
	return New(ERR_RESOURCE_EXHAUSTED, message, params...)
}

func NewConsensusStallError(message string, params ...interface{}) error {
	return New(ERR_CONSENSUS_STALL, message, params...)
}

func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}

func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}

func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}

func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}

func NewTxInvalidError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID, message, params...)
}

func NewTxLowFeeError(message string, params ...interface{}) error {
	return New(ERR_TX_LOW_FEE, message, params...)
}

func NewTxTooBigError(message string, params ...interface{}) error {
	return New(ERR_TX_TOO_BIG, message, params...)
}

func NewTxObscuredError(message string, params ...interface{}) error {
	return New(ERR_TX_OBSCURED, message, params...)
}

func NewTxInsufficientFeeError(message string, params ...interface{}) error {
	return New(ERR_TX_INSUFFICIENT_FEE_RESERVE, message, params...)
}

func NewTxDependentMissingError(message string, params ...interface{}) error {
	return New(ERR_TX_DEPENDENT_NOT_FOUND, message, params...)
}

func NewTxDuplicateError(message string, params ...interface{}) error {
	return New(ERR_TX_DUPLICATE, message, params...)
}

func NewMempoolFullError(message string, params ...interface{}) error {
	return New(ERR_MEMPOOL_FULL, message, params...)
}

func NewTaskAlreadyExistsError(message string, params ...interface{}) error {
	return New(ERR_TASK_ALREADY_EXISTS, message, params...)
}

func NewPeerUnresponsiveError(message string, params ...interface{}) error {
	return New(ERR_PEER_UNRESPONSIVE, message, params...)
}

func NewPeerBannedError(message string, params ...interface{}) error {
	return New(ERR_PEER_BANNED, message, params...)
}

func NewBbsProofOfWorkError(message string, params ...interface{}) error {
	return New(ERR_BBS_PROOF_OF_WORK, message, params...)
}

func NewBbsPayloadTooLargeError(message string, params ...interface{}) error {
	return New(ERR_BBS_PAYLOAD_TOO_LARGE, message, params...)
}

func NewBbsUnknownChannelError(message string, params ...interface{}) error {
	return New(ERR_BBS_UNKNOWN_CHANNEL, message, params...)
}
