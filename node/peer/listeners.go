package peer

import "github.com/BigRomanov/beam-1/node/wire"

// Listeners are the reactor's callbacks for inbound messages on this peer,
// mirroring services/legacy/peer.go's peer.MessageListeners shape. Each
// callback runs on this peer's own ServeLoop goroutine, not on one shared
// reactor goroutine; heavy work must be handed off to the worker pool by
// the callback itself (spec §5 "Dispatch contract").
type Listeners struct {
	OnNewTip               func(*Peer, *wire.NewTip)
	OnGetHdrPack           func(*Peer, *wire.GetHdrPack)
	OnHdrPack              func(*Peer, *wire.HdrPack)
	OnGetBody              func(*Peer, *wire.GetBody)
	OnBody                 func(*Peer, *wire.Body)
	OnNewTransaction       func(*Peer, *wire.NewTransaction)
	OnHaveTransaction      func(*Peer, *wire.HaveTransaction)
	OnSetDependentContext  func(*Peer, *wire.SetDependentContext)
	OnBbsMsg               func(*Peer, *wire.BbsMsg)
	OnBbsSubscribe         func(*Peer, *wire.BbsSubscribe)
	OnBbsResetSync         func(*Peer, *wire.BbsResetSync)
	OnDataMissing          func(*Peer, *wire.DataMissing)
	OnProofQuery           func(*Peer, *wire.ProofQuery)
	OnPing                 func(*Peer, *wire.Ping)
	OnPong                 func(*Peer, *wire.Pong)
	OnBye                  func(*Peer, *wire.Bye)
	OnDisconnect           func(*Peer)
}
