// Copyright (c) 2026 John Earle
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

package config

import "testing"

// TestAllowsBranchAllowsOverrideWithinList covers the override path: a
// branch named in AllowedBranches is permitted even when it is not the
// default BranchID.
func TestAllowsBranchAllowsOverrideWithinList(t *testing.T) {
	cfg := &Config{BranchID: 5, AllowedBranches: []int{5, 7, 12}}

	if !cfg.AllowsBranch(7) {
		t.Fatal("expected branch 7 to be allowed, it is in AllowedBranches")
	}
	if !cfg.AllowsBranch(5) {
		t.Fatal("expected the default BranchID to always be allowed")
	}
}

// TestAllowsBranchRejectsBranchOutsideList covers the rejection path: a
// branch named neither as BranchID nor in AllowedBranches is denied.
func TestAllowsBranchRejectsBranchOutsideList(t *testing.T) {
	cfg := &Config{BranchID: 5, AllowedBranches: []int{5, 7, 12}}

	if cfg.AllowsBranch(999) {
		t.Fatal("expected branch 999 to be rejected, it is outside AllowedBranches")
	}
}

// TestAllowsBranchEmptyAllowListPermitsOnlyDefault covers the documented
// edge case: an empty allow-list permits only the default BranchID.
func TestAllowsBranchEmptyAllowListPermitsOnlyDefault(t *testing.T) {
	cfg := &Config{BranchID: 5}

	if !cfg.AllowsBranch(5) {
		t.Fatal("expected the default BranchID to be allowed with an empty AllowedBranches")
	}
	if cfg.AllowsBranch(6) {
		t.Fatal("expected a non-default branch to be rejected with an empty AllowedBranches")
	}
}
