package settings

import (
	"time"

	"github.com/ordishs/gocore"
)

// Settings is the node's full runtime configuration, populated from a
// gocore.Config instance. Loading that instance from a file or CLI flags
// is out of scope for this core (spec §1) — NewSettings only maps
// already-loaded keys onto typed fields, the same split the teacher
// keeps between gocore.Config() (external) and *Settings (in scope).
type Settings struct {
	ListenAddress      string
	ConnectList        []string
	PersistentPeer     bool
	BeaconPort         int
	BeaconPeriod       time.Duration

	Peer      PeerSettings
	Sync      SyncSettings
	Chain     ChainSettings
	Mempool   MempoolSettings
	Dandelion DandelionSettings
	Miner     MinerSettings
	Bbs       BbsSettings
	Bandwidth BandwidthSettings
	Recovery  RecoverySettings

	LogEvents  bool
	LogTxStem  bool
	LogTxFluff bool
}

// PeerSettings controls the peer manager (§4.7) and peer connection (§4.1).
type PeerSettings struct {
	PeersUpdateMs      time.Duration
	PeersDbFlushMs     time.Duration
	MaxActivePeers     int
	GetStateTimeoutMs  time.Duration
	GetBlockTimeoutMs  time.Duration
	GetTxTimeoutMs     time.Duration
	GetBbsMsgTimeoutMs time.Duration
}

// SyncSettings controls the task scheduler (§4.2).
type SyncSettings struct {
	MaxConcurrentBlocksRequest int
	MaxConcurrentHeadersRequest int
}

// ChainSettings controls the chain controller's automatic-rollback
// ceiling (§4.3).
type ChainSettings struct {
	RollbackLimitMax uint32
	TimeoutSinceTipS time.Duration
}

// MempoolSettings controls the fluff/stem/dependent pools (§4.4).
type MempoolSettings struct {
	MaxPoolTransactions     int
	MaxDeferredTransactions int
	MinFee                  int64
}

// DandelionSettings controls the stem/fluff privacy pipeline (§4.4).
type DandelionSettings struct {
	FluffProbability int // out of 1<<16
	TimeoutMinMs     time.Duration
	TimeoutMaxMs     time.Duration
	DhStemConfirm    int
	AggregationTimeMs time.Duration
	OutputsMin       int
	OutputsMax       int
	DummyLifetimeLo  int
	DummyLifetimeHi  int
}

// MinerSettings controls the miner driver (§4.5).
type MinerSettings struct {
	MiningThreads       int
	VerificationThreads int
	MiningSoftRestartMs time.Duration
	FakePowSolveTimeMs  time.Duration
}

// BbsSettings controls the broadcast bulletin system (§4.6).
type BbsSettings struct {
	MessageTimeoutS time.Duration
	LimitCount      int64
	LimitSizeBytes  int64
	CleanupPeriodMs time.Duration
}

// BandwidthSettings controls peer backpressure and reply aggregation (§4.1, §6).
type BandwidthSettings struct {
	ChokingBytes      int64
	DrownBytes        int64
	MaxBodyPackSize   int64
	MaxBodyPackCount  int
}

// RecoverySettings is out of scope for recovery-file *emission* (spec
// §1) but the path/granularity knobs are still config surface a
// collaborator may consume.
type RecoverySettings struct {
	Path        string
	Granularity int
}

// NewSettings populates a *Settings from an already-loaded gocore.Config,
// applying the defaults enumerated in spec §6.
func NewSettings(c *gocore.Configuration) *Settings {
	return &Settings{
		ListenAddress:  getString(c, "listen_address", "0.0.0.0:9000"),
		ConnectList:    getMultiString(c, "connect_list", ""),
		PersistentPeer: getBool(c, "persistent_peer", false),
		BeaconPort:     getInt(c, "beacon_port", 9000),
		BeaconPeriod:   getMillis(c, "beacon_period_ms", 5000),

		Peer: PeerSettings{
			PeersUpdateMs:      getMillis(c, "peers_update_ms", 1000),
			PeersDbFlushMs:     getMillis(c, "peers_db_flush_ms", 60000),
			MaxActivePeers:     getInt(c, "max_active_peers", 20),
			GetStateTimeoutMs:  getMillis(c, "get_state_timeout_ms", 10000),
			GetBlockTimeoutMs:  getMillis(c, "get_block_timeout_ms", 30000),
			GetTxTimeoutMs:     getMillis(c, "get_tx_timeout_ms", 10000),
			GetBbsMsgTimeoutMs: getMillis(c, "get_bbs_msg_timeout_ms", 10000),
		},

		Sync: SyncSettings{
			MaxConcurrentBlocksRequest:  getInt(c, "max_concurrent_blocks_request", 18),
			MaxConcurrentHeadersRequest: getInt(c, "max_concurrent_headers_request", 2),
		},

		Chain: ChainSettings{
			RollbackLimitMax: uint32(getInt(c, "rollback_limit_max", 60)),
			TimeoutSinceTipS: getSeconds(c, "timeout_since_tip_s", 3600),
		},

		Mempool: MempoolSettings{
			MaxPoolTransactions:     getInt(c, "max_pool_transactions", 100000),
			MaxDeferredTransactions: getInt(c, "max_deferred_transactions", 100000),
			MinFee:                  int64(getInt(c, "min_fee", 1)),
		},

		Dandelion: DandelionSettings{
			FluffProbability:  getInt(c, "dandelion_fluff_probability", 0x1999),
			TimeoutMinMs:      getMillis(c, "dandelion_timeout_min_ms", 20000),
			TimeoutMaxMs:      getMillis(c, "dandelion_timeout_max_ms", 50000),
			DhStemConfirm:     getInt(c, "dandelion_dh_stem_confirm", 5),
			AggregationTimeMs: getMillis(c, "dandelion_aggregation_time_ms", 10000),
			OutputsMin:        getInt(c, "dandelion_outputs_min", 5),
			OutputsMax:        getInt(c, "dandelion_outputs_max", 40),
			DummyLifetimeLo:   getInt(c, "dandelion_dummy_lifetime_lo", 720),
			DummyLifetimeHi:   getInt(c, "dandelion_dummy_lifetime_hi", 10080),
		},

		Miner: MinerSettings{
			MiningThreads:       getInt(c, "mining_threads", 0),
			VerificationThreads: getInt(c, "verification_threads", -1),
			MiningSoftRestartMs: getMillis(c, "mining_soft_restart_ms", 1000),
			FakePowSolveTimeMs:  getMillis(c, "test_mode_fake_pow_solve_time_ms", 15000),
		},

		Bbs: BbsSettings{
			MessageTimeoutS: getSeconds(c, "bbs_message_timeout_s", 43200),
			LimitCount:      int64(getInt(c, "bbs_limit_count", 20000000)),
			LimitSizeBytes:  int64(getInt(c, "bbs_limit_size_bytes", 5*1024*1024*1024)),
			CleanupPeriodMs: getMillis(c, "bbs_cleanup_period_ms", 3600000),
		},

		Bandwidth: BandwidthSettings{
			ChokingBytes:     int64(getInt(c, "bandwidth_choking_bytes", 1*1024*1024)),
			DrownBytes:       int64(getInt(c, "bandwidth_drown_bytes", 20*1024*1024)),
			MaxBodyPackSize:  int64(getInt(c, "max_body_pack_size", 5*1024*1024)),
			MaxBodyPackCount: getInt(c, "max_body_pack_count", 3000),
		},

		Recovery: RecoverySettings{
			Path:        getString(c, "recovery_path", ""),
			Granularity: getInt(c, "recovery_granularity", 30),
		},

		LogEvents:  getBool(c, "log_events", false),
		LogTxStem:  getBool(c, "log_tx_stem", true),
		LogTxFluff: getBool(c, "log_tx_fluff", true),
	}
}
