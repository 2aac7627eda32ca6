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

package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/clearlinux/swupd-client/swupd"
)

func TestEmitWritesOneJSONRecord(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Emit(swupd.Telemetry{
		Operation: "bundle-add",
		Bundles:   []string{"editors"},
		Version:   100,
		Result:    swupd.OK,
		Bytes:     4096,
		Time:      time.Unix(1600000000, 0),
	})

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Emit did not write valid JSON: %v (raw: %s)", err, buf.String())
	}
	if record["operation"] != "bundle-add" {
		t.Errorf("operation = %v, want bundle-add", record["operation"])
	}
	if record["bytes"].(float64) != 4096 {
		t.Errorf("bytes = %v, want 4096", record["bytes"])
	}
	if record["operation_id"] == nil || record["operation_id"] == "" {
		t.Error("expected a non-empty operation_id")
	}
}

func TestEmitTagsDistinctOperationIDs(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Emit(swupd.Telemetry{Operation: "bundle-add", Result: swupd.OK, Time: time.Unix(1, 0)})
	e.Emit(swupd.Telemetry{Operation: "bundle-remove", Result: swupd.OK, Time: time.Unix(2, 0)})

	dec := json.NewDecoder(&buf)
	var first, second map[string]interface{}
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first record: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second record: %v", err)
	}
	if first["operation_id"] == second["operation_id"] {
		t.Error("expected distinct operation_id values across separate Emit calls")
	}
}
