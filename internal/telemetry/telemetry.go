// Copyright 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry implements the swupd.TelemetryEmitter collaborator,
// writing one structured record per operation.
package telemetry

import (
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clearlinux/swupd-client/swupd"
)

// Metrics are the counters a long-running host agent wrapping swupd can
// scrape, broken down by operation and result so a dashboard can tell "3
// installs failed with DiskSpaceError" from the raw log stream.
var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "swupd_operations_total",
		Help: "Count of completed swupd operations by operation and result.",
	},
	[]string{"operation", "result"},
)

var bytesTransferredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "swupd_bytes_transferred_total",
		Help: "Bytes reported moved by completed swupd operations.",
	},
	[]string{"operation"},
)

func init() {
	prometheus.MustRegister(operationsTotal, bytesTransferredTotal)
}

// Emitter writes one zerolog event per Telemetry record it receives. Each
// record is tagged with a fresh operation id so records from concurrent
// invocations of swupd on the same host don't interleave ambiguously in a
// shared log sink.
type Emitter struct {
	log zerolog.Logger
}

// New builds an Emitter writing newline-delimited JSON to w.
func New(w io.Writer) *Emitter {
	return &Emitter{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Emit satisfies swupd.TelemetryEmitter.
func (e *Emitter) Emit(t swupd.Telemetry) {
	e.log.Info().
		Str("operation_id", uuid.NewString()).
		Str("operation", t.Operation).
		Strs("bundles", t.Bundles).
		Uint32("version", t.Version).
		Str("result", t.Result.String()).
		Uint64("bytes", t.Bytes).
		Time("time", t.Time).
		Msg("swupd operation completed")

	operationsTotal.WithLabelValues(t.Operation, t.Result.String()).Inc()
	bytesTransferredTotal.WithLabelValues(t.Operation).Add(float64(t.Bytes))
}
