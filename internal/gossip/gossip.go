package gossip

import (
	"math/rand"
	"time"

	"gossipmesh/internal/crds"
)

// CrdsGossip composes one CRDS store, one Push, and one Pull: the single
// entry point ClusterInfo uses for "process incoming message", "produce
// outgoing message", and "purge".
type CrdsGossip struct {
	Store *crds.Store
	Push  *Push
	Pull  *Pull
}

func NewCrdsGossip(rng *rand.Rand) *CrdsGossip {
	return &CrdsGossip{
		Store: crds.NewStore(),
		Push:  NewPush(rng),
		Pull:  NewPull(rng),
	}
}

// Purge purges expired CRDS entries. Push/pull pacing state ages out
// implicitly: stale lastRequest entries simply stop blocking new
// requests once PullRequestMinInterval elapses.
func (g *CrdsGossip) Purge(now time.Time) int {
	return g.Store.Purge(now.UnixMilli(), CrdsGossipPullCrdsTimeoutMs)
}
