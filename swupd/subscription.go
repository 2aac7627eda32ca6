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

import "github.com/clearlinux/swupd-client/internal/stringset"

// Subscription is a tentative intent to install/consider one bundle during
// one operation (§3). Its lifetime is the operation that created it.
type Subscription struct {
	Component string
	Version   uint32
}

// SubscriptionSet tracks which bundles are being considered for the active
// operation (§3). At most one Subscription per component; membership is
// what guarantees the forward resolver terminates even in the face of a
// (disallowed, but defensively handled) manifest cycle.
type SubscriptionSet struct {
	names stringset.Set
	subs  map[string]Subscription
	order []string
}

// NewSubscriptionSet creates an empty Subscription Set.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{
		names: stringset.New(),
		subs:  make(map[string]Subscription),
	}
}

// Contains reports whether component already has a subscription.
func (s *SubscriptionSet) Contains(component string) bool {
	return s.names.Contains(component)
}

// Add records a new subscription for component at version, if one doesn't
// already exist. Returns whether it was newly added.
func (s *SubscriptionSet) Add(component string, version uint32) bool {
	if s.names.Contains(component) {
		return false
	}
	s.names.Add(component)
	s.subs[component] = Subscription{Component: component, Version: version}
	s.order = append(s.order, component)
	return true
}

// Names returns the subscribed component names in the order they were
// added, matching the stable-under-filtering invariant carried over from
// the reference implementation's intrusive lists (Design Notes §9).
func (s *SubscriptionSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports the number of subscriptions.
func (s *SubscriptionSet) Len() int { return len(s.order) }
