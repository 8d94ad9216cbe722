package receiver

import (
	"sort"
	"sync/atomic"
	"time"
)

// sample is one successful round trip's computed offset and round-trip time.
type sample struct {
	offset    int64 // microseconds, receiver-relative-to-broadcaster
	roundTrip int64 // microseconds
}

// runSyncEngine drives the receiver's NTP-style exchange: on attach it
// immediately collects a batch of samples, then repeats every SyncInterval,
// online or not, until Leave. Missing OfflineAfterMissedIntervals consecutive batches
// marks the Receiver offline without detaching it.
func (r *Receiver) runSyncEngine() {
	defer close(r.doneC)

	metricsJoined.Inc()
	defer metricsLeft.Inc()

	missed := 0
	interval := r.syncInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.runBatch(&missed)

	for {
		select {
		case <-r.stopC:
			return
		case <-ticker.C:
			r.runBatch(&missed)
		}
	}
}

// runBatch collects sampleCount() round trips and, if at least one converged
// (within rttCeiling), updates latency and marks the Receiver online. If
// every sample in the batch was discarded as an outlier, or the transport
// errored on every attempt, missed is incremented; once missed reaches
// OfflineAfterMissedIntervals the Receiver is marked offline.
func (r *Receiver) runBatch(missed *int) {
	samples := make([]sample, 0, r.sampleCount())
	ceiling := r.rttCeiling().Microseconds()

	for i := 0; i < r.sampleCount(); i++ {
		select {
		case <-r.stopC:
			return
		default:
		}

		s, ok := r.roundTrip(ceiling)
		if ok {
			samples = append(samples, s)
		}
	}

	if len(samples) == 0 {
		metricsDegenerate.Inc()
		*missed++
		if *missed >= OfflineAfterMissedIntervals {
			r.setOffline()
		}
		return
	}

	*missed = 0
	median := medianOffset(samples)
	r.setOnline(median)
}

// roundTrip performs one sync request/response exchange and computes its
// offset and round trip. It reports ok=false if the transport errored or the
// round trip exceeded ceiling.
func (r *Receiver) roundTrip(ceilingUS int64) (sample, bool) {
	t1 := int64(r.Clock.Now())

	resp, err := r.Transport.Exchange(SyncRequest{T1: t1})
	if err != nil {
		metricsTransportErrors.Inc()
		return sample{}, false
	}

	t4 := int64(r.Clock.Now())

	offset := ((resp.T2 - t1) + (resp.T3 - t4)) / 2
	roundTrip := (t4 - t1) - (resp.T3 - resp.T2)

	if roundTrip < 0 || roundTrip > ceilingUS {
		return sample{}, false
	}
	return sample{offset: offset, roundTrip: roundTrip}, true
}

// medianOffset returns the offset of the median-round-trip sample.
//
// Taking the offset paired with the median round trip, rather than the
// median of the offsets independently, keeps the reported offset and
// round_trip self-consistent as a single observed round.
func medianOffset(samples []sample) sample {
	sorted := append([]sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].roundTrip < sorted[j].roundTrip })
	return sorted[len(sorted)/2]
}

func (r *Receiver) setOnline(s sample) {
	metricsConverged.Inc()
	r.setAtomics(s.roundTrip/2, 1)
}

func (r *Receiver) setOffline() {
	metricsOffline.Inc()
	r.setAtomics(0, 0)
}

func (r *Receiver) setAtomics(latencyUS int64, online int32) {
	atomic.StoreInt64(&r.latencyUS, latencyUS)
	atomic.StoreInt32(&r.online, online)
}
