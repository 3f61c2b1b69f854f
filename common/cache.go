// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
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

package common

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const defaultLocalCacheSize = 1024

var (
	ErrCacheMiss = errors.New("key not found in cache")
)

var (
	cacheLocker sync.Mutex
	rdb         *redis.Client
	cache       *lru.Cache
)

// SetupCache creates the local LRU cache and, when `cache.redis` is set, a
// connection to the shared redis cache
func SetupCache() error {
	cacheLocker.Lock()
	defer cacheLocker.Unlock()

	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return err
		}

		rdb = redis.NewClient(opt)
	} else {
		rdb = nil
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = defaultLocalCacheSize
	}

	var err error
	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return err
	}

	return nil
}

func localCache() *lru.Cache {
	cacheLocker.Lock()
	defer cacheLocker.Unlock()

	if cache == nil {
		// SetupCache was never called (e.g. in tests); fall back to a default sized cache
		cache, _ = lru.New(defaultLocalCacheSize)
	}
	return cache
}

// CacheKey hashes parts into a fixed length key suitable for both cache levels
func CacheKey(parts ...string) string {
	h := blake3.New()
	for _, part := range parts {
		if _, err := h.Write([]byte(part)); err != nil {
			log.Error().Stack().Err(err).Msg("could not write to blake3 hasher")
		}
		// separator so that ("ab", "c") and ("a", "bc") do not collide
		if _, err := h.Write([]byte{0}); err != nil {
			log.Error().Stack().Err(err).Msg("could not write to blake3 hasher")
		}
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func cacheTTL() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

// CacheSet compresses bytes and stores them in the local cache and redis (if configured)
func CacheSet(ctx context.Context, key string, val []byte) error {
	b2, err := compress(val)
	if err != nil {
		return err
	}
	localCache().Add(key, b2)

	if rdb != nil {
		return rdb.Set(ctx, key, b2, cacheTTL()).Err()
	}
	return nil
}

// CacheGet returns the decompressed value stored under key or ErrCacheMiss
func CacheGet(ctx context.Context, key string) ([]byte, error) {
	if v2, ok := localCache().Get(key); ok {
		return decompress(v2.([]byte))
	}

	if rdb != nil {
		val, err := rdb.GetEx(ctx, key, cacheTTL()).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, err
		}
		localCache().Add(key, val)
		return decompress(val)
	}

	return nil, ErrCacheMiss
}

// CachePurge removes every entry from the local cache
func CachePurge() {
	localCache().Purge()
}

// values are stored lz4 compressed in both cache levels
func compress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	if _, err := io.Copy(zw, bytes.NewReader(in)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	if _, err := io.Copy(w, lz4.NewReader(bytes.NewReader(in))); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
