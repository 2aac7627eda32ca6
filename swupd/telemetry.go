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

package swupd

import "time"

// Telemetry is the record emitted once per operation (§6): operation name,
// bundle list, current version, result code, byte count.
type Telemetry struct {
	Operation string
	Bundles   []string
	Version   uint32
	Result    ExitCode
	Bytes     uint64
	Time      time.Time
}
