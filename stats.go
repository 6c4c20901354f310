// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import "sync/atomic"

// Stats is the per-service counter set. Counters are updated with relaxed
// atomics; lossy reads are tolerated.
type Stats struct {
	writeRequests atomic.Int64
	rawCalls      atomic.Int64
	bytesWritten  atomic.Int64
	partialEvents atomic.Int64
	partialBytes  atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	// WriteRequests counts dispatcher entry calls.
	WriteRequests int64
	// RawCalls counts raw-issuer attempts against the transport.
	RawCalls int64
	// BytesWritten counts bytes the transport accepted.
	BytesWritten int64
	// PartialEvents counts short writes whose residue was stashed.
	PartialEvents int64
	// PartialBytes counts residue bytes taken into custody.
	PartialBytes int64
}

// Snapshot returns a lossy copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		WriteRequests: s.writeRequests.Load(),
		RawCalls:      s.rawCalls.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		PartialEvents: s.partialEvents.Load(),
		PartialBytes:  s.partialBytes.Load(),
	}
}
