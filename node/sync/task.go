// Package sync implements the task scheduler (spec §4.2): it assigns
// header-pack and body-fetch work to connected peers, enforces the
// concurrency cap per peer, and remembers which peers have already
// failed to supply a given task.
package sync

import "github.com/BigRomanov/beam-1/chainmodel"

// TaskKey identifies a unit of sync work: a header-pack request rooted at
// a BlockID, or a body fetch for a specific BlockID.
type TaskKey struct {
	ID     chainmodel.BlockID
	IsBody bool
}
