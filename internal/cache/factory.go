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

package cache

import (
	"fmt"

	"github.com/JPMarichal/ccmwf/internal/config"
)

// New builds the Strategy variant selected by cfg.CacheProvider.
//
// Grounded on original_source's create_cache_strategy factory function.
func New(cfg *config.Config) (Strategy, error) {
	switch cfg.CacheProvider {
	case config.CacheProviderRemote:
		return NewRedisStrategy(cfg.CacheRedisURL)
	case config.CacheProviderMemory:
		return NewMemoryStrategy(), nil
	default:
		return nil, fmt.Errorf("cache_provider_unsupported: %q", cfg.CacheProvider)
	}
}
