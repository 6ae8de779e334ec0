package scenario

import (
	"fmt"
	"math"
	"time"
)

// SubmissionPlan derives how many transactions to submit over a run and the
// interval between submissions, given a target rate (transactions per
// block) and how many distinct accounts are available to submit from.
// Shared by the transaction workload and its inclusion expectation so both
// agree on exactly the same plan.
func SubmissionPlan(runDuration, blockIntervalHint time.Duration, txsPerBlock uint64, availableAccounts int) (planned int, interval time.Duration, err error) {
	if availableAccounts == 0 {
		return 0, 0, fmt.Errorf("scenario: transaction plan scheduled zero transactions: no accounts available")
	}
	if txsPerBlock == 0 {
		return 0, 0, fmt.Errorf("scenario: transaction plan requires a positive rate per block")
	}

	blockSecs := blockIntervalHint.Seconds()
	if blockSecs <= 0 {
		blockSecs = runDuration.Seconds()
	}
	runSecs := runDuration.Seconds()

	expectedBlocks := runSecs / blockSecs
	requested := math.Floor(expectedBlocks * float64(txsPerBlock))
	if requested < 0 {
		requested = 0
	}

	planned = int(math.Min(requested, float64(availableAccounts)))
	if planned == 0 {
		return 0, 0, fmt.Errorf("scenario: transaction plan scheduled zero transactions")
	}

	interval = time.Duration(runSecs / float64(planned) * float64(time.Second))
	return planned, interval, nil
}

// LimitedUserCount applies an optional user-count limit (0 means unlimited)
// to a pool size.
func LimitedUserCount(userLimit, available int) int {
	if userLimit <= 0 || userLimit > available {
		return available
	}
	return userLimit
}

// DAPlan derives the deterministic channel set and blob targets shared by
// the data-availability workload and its inclusion expectation, so both
// agree on exactly which channel ids are in play and how many blobs are
// expected overall (mirrors SubmissionPlan's role for the transaction
// workload/tx_inclusion pair).
//
// channelCount = max(1, ceil(channelRatePerBlock * (1 + headroomPct/100))).
// expectedBlobs = ceil(blobRatePerBlock * expectedConsensusBlocks).
// perChannelTarget = ceil(expectedBlobs / channelCount).
func DAPlan(channelRatePerBlock float64, headroomPct int, blobRatePerBlock float64, expectedConsensusBlocks uint64) (channels []ChannelID, expectedBlobs int, perChannelTarget int) {
	count := int(math.Ceil(channelRatePerBlock * (1 + float64(headroomPct)/100)))
	if count < 1 {
		count = 1
	}
	channels = make([]ChannelID, count)
	for i := range channels {
		channels[i] = ChannelID(i)
	}

	expectedBlobs = int(math.Ceil(blobRatePerBlock * float64(expectedConsensusBlocks)))
	if expectedBlobs < 0 {
		expectedBlobs = 0
	}
	perChannelTarget = int(math.Ceil(float64(expectedBlobs) / float64(count)))
	return channels, expectedBlobs, perChannelTarget
}
