// Package node wires every subsystem under node/ into the single
// reactor described by spec §2 and §5: one goroutine owns the peer set,
// the scheduler, the mempool, the BBS store, and the peer manager; a
// fixed worker pool (chain.Verifier) runs CPU-heavy validation off that
// goroutine and posts results back over a channel the reactor selects
// on, grounded on
// services/blockassembly/BlockAssembler.go's startChannelListeners
// "subscription channel + select" idiom.
package node

import (
	"context"
	"math/big"
	"net"
	"runtime"
	stdsync "sync"
	"time"

	"github.com/BigRomanov/beam-1/chainmodel"
	"github.com/BigRomanov/beam-1/node/bbs"
	"github.com/BigRomanov/beam-1/node/chain"
	"github.com/BigRomanov/beam-1/node/mempool"
	"github.com/BigRomanov/beam-1/node/miner"
	"github.com/BigRomanov/beam-1/node/peer"
	"github.com/BigRomanov/beam-1/node/peermgr"
	"github.com/BigRomanov/beam-1/node/sync"
	"github.com/BigRomanov/beam-1/node/wanted"
	"github.com/BigRomanov/beam-1/node/wire"
	"github.com/BigRomanov/beam-1/settings"
	"github.com/BigRomanov/beam-1/ulogger"
)

// Collaborators bundles the out-of-scope interfaces the node drives but
// never implements itself (spec §1): chain validation/persistence, tx
// validation, and block-candidate construction.
type Collaborators struct {
	Processor chainmodel.ChainProcessor
	DB        chainmodel.NodeDB
	Validator chainmodel.TxValidator
	Mining    chainmodel.MiningCollaborator
}

// Config bundles everything Reactor needs at construction, passed as a
// context handle rather than reached for through a global singleton
// (spec §9 design note "Global state").
type Config struct {
	Settings       *settings.Settings
	Identity       peer.Identity
	Log            ulogger.Logger
	Collaborators  Collaborators
	MinerMode      miner.Mode
	AllowFinalizer bool
}

// Reactor is the single-threaded state machine owning every peer, timer,
// and in-memory pool (spec §5 "Scheduling model"). Outside goroutines
// (worker pool, mining threads, accept loop) reach it only through
// message-passing APIs on node/sync, node/mempool, node/bbs, and
// node/peermgr, or through the async-event pattern used for task
// completion and mined solutions (spec §9 "Thread-hopping callbacks").
type Reactor struct {
	cfg    *settings.Settings
	log    ulogger.Logger
	collab Collaborators

	peerCfg peer.Config

	registry *peermgr.Registry
	addrBook *peermgr.AddressBook
	banMgr   *peermgr.BanManager

	scheduler *sync.Scheduler
	chainCtl  *chain.Controller
	verifier  *chain.Verifier
	pool      *mempool.Pool
	bbsStore  *bbs.Store
	miner     *miner.Driver
	wantedTx  *wanted.Set[chainmodel.Hash]

	allowFinalizer bool

	mu        stdsync.Mutex
	peers     map[peermgr.NodeID]*peer.Peer
	finalizer peermgr.NodeID

	listener net.Listener
}

// New builds a Reactor and every subsystem it owns, using the ceilings
// and defaults enumerated in spec §6. ctx bounds the lifetime of
// subsystems (node/bbs.Store, node/peermgr.BanManager) that start their
// own background loops at construction time.
func New(ctx context.Context, cfg Config) *Reactor {
	st := cfg.Settings
	log := cfg.Log
	if log == nil {
		log = ulogger.New("node")
	}

	r := &Reactor{
		cfg:            st,
		log:            log,
		collab:         cfg.Collaborators,
		peers:          make(map[peermgr.NodeID]*peer.Peer),
		wantedTx:       wanted.New[chainmodel.Hash](st.Peer.GetTxTimeoutMs),
		allowFinalizer: cfg.AllowFinalizer,
	}

	r.peerCfg = peer.Config{
		Identity: cfg.Identity,
		OwnFlags: peer.LoginFlags{
			SpreadingTransactions: true,
			Bbs:                   true,
			MiningFinalization:    cfg.AllowFinalizer,
		},
		ChokingBytes: st.Bandwidth.ChokingBytes,
		DrownBytes:   st.Bandwidth.DrownBytes,
		RejectedTTL:  st.Peer.GetBlockTimeoutMs,
	}

	r.registry = peermgr.NewRegistry()
	r.addrBook = peermgr.NewAddressBook(log.New("peermgr"), r, cfg.Collaborators.DB, st.Peer.MaxActivePeers)
	r.banMgr = peermgr.NewBanManager(ctx, r, 100, 24*time.Hour, r.registry)

	r.bbsStore = bbs.New(ctx, log.New("bbs"), st.Bbs.MessageTimeoutS, st.Bbs.LimitCount, st.Bbs.LimitSizeBytes, st.Bbs.CleanupPeriodMs)

	r.scheduler = sync.New(log.New("sync"), st.Sync.MaxConcurrentBlocksRequest, st.Sync.MaxConcurrentHeadersRequest,
		st.Peer.GetBlockTimeoutMs, r.penalizePeer, r.disconnectPeer)

	r.chainCtl = chain.New(cfg.Collaborators.Processor, cfg.Collaborators.DB, log.New("chain"), chain.Listeners{
		BroadcastNewTip:    r.broadcastNewTip,
		DisconnectPeer:     r.disconnectPeer,
		AnnotateRolledBack: r.annotateRolledBack,
	}, chain.Config{
		MaxAutoRollback:      st.Chain.RollbackLimitMax,
		RollbackRulesCeiling: ^uint32(0), // Rules::MaxRollback is the ChainProcessor's concern, unbounded here
		TimeoutSinceTip:      st.Chain.TimeoutSinceTipS,
		FlushDebounce:        5 * time.Second,
	})

	verificationThreads := st.Miner.VerificationThreads
	if verificationThreads < 0 {
		verificationThreads = maxInt(1, runtime.NumCPU()-st.Miner.MiningThreads)
	}
	r.verifier = chain.NewVerifier(verificationThreads)

	r.pool = mempool.New(cfg.Collaborators.Validator, r, log.New("mempool"), st.Mempool, st.Dandelion)

	if cfg.Collaborators.Mining != nil {
		r.miner = miner.New(cfg.Collaborators.Mining, log.New("miner"), st.Miner, cfg.MinerMode)
	}

	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run starts the listener, every subsystem's background loop, and the
// reactor's own ticker-driven maintenance (scheduler assignment/timeout
// sweeps, address-book activation/flush) until ctx is canceled.
func (r *Reactor) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.cfg.ListenAddress)
	if err != nil {
		return err
	}
	r.listener = ln
	defer ln.Close()

	go r.chainCtl.Run(ctx)
	go r.pool.Run(ctx)
	go r.verifier.Run(ctx)
	go r.drainVerifierResults(ctx)

	if r.miner != nil {
		go r.miner.Run(ctx)
	}

	go r.acceptLoop(ctx)

	for _, addr := range r.cfg.ConnectList {
		addr := addr
		go func() {
			if err := r.Dial(ctx, "", addr); err != nil {
				r.log.Warnf("node: connect_list dial %s failed: %v", addr, err)
			}
		}()
	}

	maintenance := time.NewTicker(250 * time.Millisecond)
	defer maintenance.Stop()

	peersUpdate := time.NewTicker(r.cfg.Peer.PeersUpdateMs)
	defer peersUpdate.Stop()

	peersFlush := time.NewTicker(r.cfg.Peer.PeersDbFlushMs)
	defer peersFlush.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-maintenance.C:
			r.scheduler.AssignTasks()
			r.scheduler.CheckTimeouts(ctx)

		case <-peersUpdate.C:
			r.addrBook.ActivateMorePeers(ctx)

		case <-peersFlush.C:
			if err := r.addrBook.Flush(ctx); err != nil {
				r.log.Errorf("node: address book flush failed: %v", err)
			}
		}
	}
}

// drainVerifierResults runs the completion side of the worker-pool
// hand-off: every closure chain.Verifier posts is invoked here, on the
// reactor goroutine, never on the worker that produced it (spec §5
// "posted back over a channel the reactor selects on").
func (r *Reactor) drainVerifierResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.verifier.Results():
			fn()
		}
	}
}

// acceptLoop accepts inbound connections and hands each one through the
// secure-channel/authentication/login handshake (spec §4.1 steps 1-3).
func (r *Reactor) acceptLoop(ctx context.Context) {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warnf("node: accept failed: %v", err)
			continue
		}

		go func() {
			p, err := peer.Accept(ctx, r.log.New("peer"), conn, r.peerCfg, r.peerListeners())
			if err != nil {
				r.log.Warnf("node: inbound handshake from %s failed: %v", conn.RemoteAddr(), err)
				return
			}
			r.registerPeer(p)
			_ = p.ServeLoop(ctx)
		}()
	}
}

// Dial opens an outbound connection to address, completing the full
// handshake, and satisfies peermgr.Dialer for the address book's
// ActivateMorePeers (spec §4.7). nodeID is advisory (the address book's
// bookkeeping key); the handshake itself re-derives identity from the
// remote's Authentication signature.
func (r *Reactor) Dial(ctx context.Context, nodeID peermgr.NodeID, address string) error {
	p, err := peer.Dial(ctx, r.log.New("peer"), address, r.peerCfg, r.peerListeners())
	if err != nil {
		return err
	}

	r.registerPeer(p)
	go func() { _ = p.ServeLoop(ctx) }()
	return nil
}

// registerPeer adds a newly active peer to every subsystem that tracks
// peers by identity (spec §3 "Peer... Lifecycle: allocated on accept or
// dial").
func (r *Reactor) registerPeer(p *peer.Peer) {
	r.mu.Lock()
	r.peers[p.ID()] = p
	r.mu.Unlock()

	r.registry.AddPeer(p.ID(), "")
	r.addrBook.SetActive(p.ID(), true)
	r.scheduler.AddPeer(p)

	if tip := r.chainCtl.GetState(); tip != nil {
		_ = p.Send(&wire.NewTip{Height: tip.Height, Hash: tip.Hash, ChainWork: chainWorkBytes(tip)}, true)
	}

	if r.allowFinalizer && p.Flags.MiningFinalization && r.miner != nil {
		r.mu.Lock()
		noFinalizerYet := r.finalizer == ""
		if noFinalizerYet {
			r.finalizer = p.ID()
		}
		r.mu.Unlock()

		if noFinalizerYet {
			r.miner.SetFinalizer(p)
		}
	}
}

// disconnectPeer satisfies both sync.Scheduler's onDisconnect callback
// and chain.Listeners.DisconnectPeer, and OnPeerBanned and
// onPeerDisconnect call it too. Its callers run on several goroutines
// (the controller's Run loop, a peer's ServeLoop, the maintenance loop),
// so r.peers is only touched under r.mu.
func (r *Reactor) disconnectPeer(nodeID peermgr.NodeID) {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	wasFinalizer := r.finalizer == nodeID
	if wasFinalizer {
		r.finalizer = ""
	}
	delete(r.peers, nodeID)
	r.mu.Unlock()

	if !ok {
		return
	}

	_ = p.Close()
	r.scheduler.RemovePeer(nodeID)
	r.addrBook.SetActive(nodeID, false)

	if wasFinalizer && r.miner != nil {
		r.miner.ClearFinalizer(context.Background())
	}
}

// penalizePeer satisfies sync.Scheduler's onPenalize callback, routing
// task-timeout penalties into the shared ban-score accounting (spec
// §4.2 step 3, §4.7).
func (r *Reactor) penalizePeer(nodeID peermgr.NodeID, reason peermgr.BanReason) {
	r.banMgr.AddScore(nodeID, reason)
}

// OnPeerBanned satisfies peermgr.BanEventHandler: a peer that crossed
// the ban threshold is time-limited out of the address book and
// disconnected (spec §4.7 "A misbehaving peer receives a time-limited
// ban").
func (r *Reactor) OnPeerBanned(peerID peermgr.NodeID, until time.Time, reason string) {
	r.addrBook.Ban(peerID, until)
	r.log.Warnf("node: peer %s banned until %s (%s)", peerID, until, reason)
	r.disconnectPeer(peerID)
}

// BroadcastExcept satisfies mempool.Broadcaster: it fans a message out
// to every connected peer whose flags permit it, other than except
// (spec §4.4 "Fluff phase": "advertised... to all peers with
// SpreadingTransactions, except the sender"). A BbsMsg only reaches
// peers actually subscribed to its channel (spec §4.6 "channel-
// partitioned... forwards new messages to subscribers"), not every
// Bbs-capable peer.
func (r *Reactor) BroadcastExcept(msg wire.Message, except peermgr.NodeID) {
	r.mu.Lock()
	targets := make([]*peer.Peer, 0, len(r.peers))
	for id, p := range r.peers {
		if id == except {
			continue
		}
		targets = append(targets, p)
	}
	r.mu.Unlock()

	bbsMsg, isBbs := msg.(*wire.BbsMsg)
	essential := !isBbs && msg.Command() != wire.CmdHaveTransaction

	for _, p := range targets {
		if isBbs {
			if !p.Flags.Bbs || !p.SubscribedTo(bbsMsg.Channel) {
				continue
			}
		} else if !p.Flags.SpreadingTransactions {
			continue
		}
		_ = p.Send(msg, essential)
	}
}

// broadcastNewTip satisfies chain.Listeners.BroadcastNewTip (spec §4.3
// "onNewState... broadcast new tip to peers whose flags permit").
func (r *Reactor) broadcastNewTip(tip *chainmodel.SystemState) {
	msg := &wire.NewTip{Height: tip.Height, Hash: tip.Hash, ChainWork: chainWorkBytes(tip)}

	r.mu.Lock()
	targets := make([]*peer.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		targets = append(targets, p)
	}
	r.mu.Unlock()

	for _, p := range targets {
		_ = p.Send(msg, true)
	}

	r.pool.OnNewHeight(tip.Height)
	if r.miner != nil {
		r.miner.OnNewState(context.Background())
	}
}

// annotateRolledBack satisfies chain.Listeners.AnnotateRolledBack (spec
// §4.3 "onRolledBack -> annotate all peers and the observer").
func (r *Reactor) annotateRolledBack(toHeight uint32) {
	r.log.Infof("node: chain rolled back to height %d", toHeight)
}

func chainWorkBytes(s *chainmodel.SystemState) []byte {
	if s == nil || s.ChainWork == nil {
		return nil
	}
	return s.ChainWork.Bytes()
}

// peerListeners builds the inbound-message dispatch table bound to this
// reactor (spec §5 "Dispatch contract": cheap validation on the reactor
// thread, heavy validation offloaded to the worker pool).
func (r *Reactor) peerListeners() peer.Listeners {
	return peer.Listeners{
		OnNewTip:              r.onNewTip,
		OnGetHdrPack:          r.onGetHdrPack,
		OnHdrPack:             r.onHdrPack,
		OnGetBody:             r.onGetBody,
		OnBody:                r.onBody,
		OnNewTransaction:      r.onNewTransaction,
		OnHaveTransaction:     r.onHaveTransaction,
		OnSetDependentContext: r.onSetDependentContext,
		OnBbsMsg:              r.onBbsMsg,
		OnBbsSubscribe:        r.onBbsSubscribe,
		OnBbsResetSync:        r.onBbsResetSync,
		OnDataMissing:         r.onDataMissing,
		OnProofQuery:          r.onProofQuery,
		OnBye:                 r.onBye,
		OnDisconnect:          r.onPeerDisconnect,
	}
}

func (r *Reactor) onNewTip(p *peer.Peer, m *wire.NewTip) {
	proposed := &chainmodel.SystemState{
		BlockID:   chainmodel.BlockID{Height: m.Height, Hash: m.Hash},
		ChainWork: bigIntFromBytes(m.ChainWork),
	}
	r.chainCtl.ProposeState(proposed)

	if cur := r.chainCtl.GetState(); cur == nil || m.Height > cur.Height {
		r.scheduler.RequestData(chainmodel.BlockID{Height: m.Height, Hash: m.Hash}, false)
	}
}

// onGetHdrPack serves a peer's header-pack request. This core has no
// backing header store of its own (NodeDB is an out-of-scope
// collaborator, spec §1), so it always answers DataMissing — the
// correct response for data it does not hold, matching the
// DataMissing/rejected-task-memory flow the requester already expects
// (spec §4.1 "Rejected-task memory").
func (r *Reactor) onGetHdrPack(p *peer.Peer, m *wire.GetHdrPack) {
	_ = p.Send(&wire.DataMissing{IsBody: false, ID: m.From}, true)
}

func (r *Reactor) onGetBody(p *peer.Peer, m *wire.GetBody) {
	_ = p.Send(&wire.DataMissing{IsBody: true, ID: m.ID}, true)
}

// onHdrPack offloads header validation to the worker pool and, on
// success, tells the scheduler the task is satisfied and proposes the
// resulting tip to the chain controller (spec §4.2 step 4, Open
// Question (b): strict contiguous chaining required).
func (r *Reactor) onHdrPack(p *peer.Peer, m *wire.HdrPack) {
	if len(m.Headers) == 0 {
		return
	}

	key := sync.TaskKey{ID: m.Headers[0], IsBody: false}

	for i := 1; i < len(m.Headers); i++ {
		if m.Headers[i].Height != m.Headers[i-1].Height+1 {
			r.scheduler.OnAnswered(p.ID(), key, false)
			r.banMgr.AddScore(p.ID(), peermgr.ReasonProtocolViolation)
			return
		}
	}

	headers := m.Headers
	peerID := p.ID()

	r.verifier.Submit(func() error {
		return r.collab.Processor.ValidateHeaders(context.Background(), headers)
	}, func(err error) {
		if err != nil {
			r.scheduler.OnAnswered(peerID, key, false)
			r.banMgr.AddScore(peerID, peermgr.ReasonBadData)
			return
		}

		r.scheduler.OnAnswered(peerID, key, true)
		last := headers[len(headers)-1]
		r.chainCtl.RecordHeaderProgress(last.Height)
		r.scheduler.RequestData(last, true)
	})
}

// onBody offloads block-body validation to the worker pool and, on
// success, proposes the new tip and schedules a debounced flush (spec
// §4.3 "onModified").
func (r *Reactor) onBody(p *peer.Peer, m *wire.Body) {
	key := sync.TaskKey{ID: m.ID, IsBody: true}
	id := m.ID
	payload := m.Payload
	peerID := p.ID()

	r.verifier.Submit(func() error {
		return r.collab.Processor.ValidateBody(context.Background(), id, payload)
	}, func(err error) {
		if err != nil {
			r.scheduler.OnAnswered(peerID, key, false)
			r.banMgr.AddScore(peerID, peermgr.ReasonBadData)
			return
		}

		r.scheduler.OnAnswered(peerID, key, true)
		r.chainCtl.RecordBodyProgress(id.Height)
		r.chainCtl.OnModified()
	})
}

// onNewTransaction runs the full mempool acceptance pipeline (spec
// §4.4) and forgets the id from the wanted-set if it was outstanding.
func (r *Reactor) onNewTransaction(p *peer.Peer, m *wire.NewTransaction) {
	rc := r.pool.OnTransaction(context.Background(), m.ID, m.Payload, m.Ctx, p.ID(), m.Fluff)
	if rc.Retained() {
		r.wantedTx.Forget(m.ID)
	}
	if r.cfg.LogTxFluff && m.Fluff {
		r.log.Debugf("node: tx %s from %s -> %s", m.ID, p.ID(), rc)
	}
}

// onHaveTransaction requests an unfamiliar advertised kernel at most
// once per wanted-set TTL (spec §2 Wanted-set "I want X; ask peers").
func (r *Reactor) onHaveTransaction(p *peer.Peer, m *wire.HaveTransaction) {
	if r.wantedTx.Has(m.ID) {
		return
	}

	r.wantedTx.Want(m.ID)
	r.wantedTx.MarkAsked(m.ID, string(p.ID()))
	_ = p.Send(&wire.ProofQuery{Cmd: wire.CmdGetTransaction, Payload: m.ID[:]}, true)
}

// onSetDependentContext forwards the dependent-context link to every
// other peer (spec §4.4 "the node forwards new links").
func (r *Reactor) onSetDependentContext(p *peer.Peer, m *wire.SetDependentContext) {
	r.BroadcastExcept(m, p.ID())
}

func (r *Reactor) onBbsMsg(p *peer.Peer, m *wire.BbsMsg) {
	msg := &bbs.Message{Channel: m.Channel, Time: m.Time, ID: m.ID, Payload: m.Payload, Nonce: m.Nonce}
	if err := r.bbsStore.Insert(msg); err != nil {
		r.log.Debugf("node: bbs insert from %s rejected: %v", p.ID(), err)
		return
	}
	r.BroadcastExcept(m, p.ID())
}

// onBbsSubscribe logs the subscription; Peer itself already recorded the
// channel in p.bbsSubs before invoking this listener (spec §4.6 "Clients
// subscribe to channels"), and BroadcastExcept reads it back via
// p.SubscribedTo for every future BbsMsg fanout.
func (r *Reactor) onBbsSubscribe(p *peer.Peer, m *wire.BbsSubscribe) {
	r.log.Debugf("node: peer %s subscribed to bbs channel %d", p.ID(), m.Channel)
}

// onBbsResetSync replays every message newer than Since on Channel to
// the requesting peer (spec §4.6 "Synchronization").
func (r *Reactor) onBbsResetSync(p *peer.Peer, m *wire.BbsResetSync) {
	msgs, _ := r.bbsStore.Sync(m.Channel, m.Since)
	for _, msg := range msgs {
		_ = p.Send(&wire.BbsMsg{Channel: msg.Channel, Time: msg.Time, ID: msg.ID, Payload: msg.Payload, Nonce: msg.Nonce}, false)
	}
}

// onDataMissing releases the task back to unassigned for reassignment
// (spec §4.1 "Rejected-task memory"); Peer has already recorded the key
// in its own rejected set before this listener runs.
func (r *Reactor) onDataMissing(p *peer.Peer, m *wire.DataMissing) {
	key := sync.TaskKey{ID: m.ID, IsBody: m.IsBody}
	r.scheduler.OnAnswered(p.ID(), key, false)
}

// onProofQuery routes GetProofState, GetProofChainWork,
// GetProofKernel/GetProofKernel2, GetProofUtxo and GetStateSummary to the
// matching ChainProcessor method without interpreting their payload, and
// hands BlockFinalization, this core's own finalizer-handoff channel
// (spec §4.5), to the miner. Every other passthrough command is dropped
// without a reply.
func (r *Reactor) onProofQuery(p *peer.Peer, m *wire.ProofQuery) {
	if m.Cmd == wire.CmdBlockFinalization {
		if r.miner != nil {
			r.miner.OnFinalizedBlock(context.Background(), m.Payload)
		}
		return
	}

	if r.collab.Processor == nil {
		return
	}

	ctx := context.Background()
	var reply []byte
	var err error

	switch m.Cmd {
	case wire.CmdGetProofState:
		reply, err = r.collab.Processor.ProofState(ctx, blockIDFromPayload(m.Payload))
	case wire.CmdGetProofChainWork:
		reply, err = r.collab.Processor.ProofChainWork(ctx, blockIDFromPayload(m.Payload))
	case wire.CmdGetProofKernel, wire.CmdGetProofKernel2:
		reply, err = r.collab.Processor.ProofKernel(ctx, hashFromPayload(m.Payload))
	case wire.CmdGetProofUtxo:
		reply, err = r.collab.Processor.ProofUtxo(ctx, hashFromPayload(m.Payload))
	case wire.CmdGetStateSummary:
		reply, err = r.collab.Processor.StateSummary(ctx)
	default:
		return
	}

	if err != nil {
		r.log.Debugf("node: proof query %d failed: %v", byte(m.Cmd), err)
		return
	}

	_ = p.Send(&wire.ProofQuery{Cmd: m.Cmd, Payload: reply}, true)
}

func (r *Reactor) onBye(p *peer.Peer, m *wire.Bye) {
	r.log.Infof("node: peer %s said bye (%d)", p.ID(), m.Reason)
}

// onPeerDisconnect is the Peer's own teardown hook (spec §4.1
// "Transitions out of Active free all owned tasks"); it removes the
// peer from every subsystem that tracks it by identity.
func (r *Reactor) onPeerDisconnect(p *peer.Peer) {
	r.disconnectPeer(p.ID())
}

func blockIDFromPayload(payload []byte) chainmodel.BlockID {
	var id chainmodel.BlockID
	if len(payload) < 36 {
		return id
	}
	id.Height = uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	copy(id.Hash[:], payload[4:36])
	return id
}

func hashFromPayload(payload []byte) chainmodel.Hash {
	var h chainmodel.Hash
	if len(payload) < 32 {
		return h
	}
	copy(h[:], payload[:32])
	return h
}

func bigIntFromBytes(b []byte) *big.Int {
	if len(b) == 0 {
		return nil
	}
	return new(big.Int).SetBytes(b)
}
