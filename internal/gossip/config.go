// Package gossip implements the three-message push/pull gossip protocol
// (CrdsGossipPush, CrdsGossipPull, the CrdsGossip facade) and its wire
// envelopes, built directly on top of internal/crds and internal/bloom.
package gossip

import "time"

const (
	// GossipSleepMillis is how often the gossip thread wakes to build
	// new pull/push requests and purge the CRDS.
	GossipSleepMillis = 100

	// CrdsGossipPullCrdsTimeoutMs is the purge timeout for CRDS entries,
	// and the period (halved) at which a node re-pushes its own
	// ContactInfo as a keepalive.
	CrdsGossipPullCrdsTimeoutMs = 60_000

	// PruneTimeoutMs bounds how stale a PruneMessage's wallclock may be
	// before it is rejected as PruneMessageTimeout.
	PruneTimeoutMs = 10_000

	// PushFanout is the target size of the active push set.
	PushFanout = 6

	// PushBatchSize caps how many pending values one new_push_messages
	// call drains at a time.
	PushBatchSize = 64

	// PullResponseBudget caps how many values one process_pull_request
	// call returns.
	PullResponseBudget = 128

	// BloomFalsePositiveRate is used when a pull request sizes its Bloom
	// filter from the current CRDS size.
	BloomFalsePositiveRate = 0.01

	// PullRequestMinInterval paces how often this node will pull from
	// the same peer again.
	PullRequestMinInterval = 500 * time.Millisecond
)
