/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package cache memoizes classified layer move sets in memory. The
// classifier re-scans the whole document on every query, so a viewer that
// flips between layers of the same file pays O(document) each time without
// one. Entries are keyed by (document hash, layer); an edited document gets
// a new hash and therefore never sees stale entries.
package cache

import (
	"sync"
	"time"

	"toolpathstudio/internal/gcode"
)

// approximate in-memory cost of one Move (two float64, bool, int, padding)
const moveBytes = 32

// Config controls memory caps and per-document depth.
type Config struct {
	// MaxBytes is a soft cap; least-recently-used entries are pruned when
	// exceeded.
	MaxBytes int
	// MaxPerDoc limits the number of cached layers per document
	// (0 means unlimited).
	MaxPerDoc int
}

type key struct {
	docHash string
	layer   int
}

type entry struct {
	moves    []gcode.Move
	bytes    int
	lastUsed time.Time
}

// Store is an in-memory layer cache with memory safeguards. It is safe for
// concurrent use.
type Store struct {
	cfg Config
	mu  sync.Mutex

	entries map[key]*entry
	perDoc  map[string]int

	totalBytes int
}

func New(cfg Config) *Store {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	return &Store{cfg: cfg, entries: make(map[key]*entry), perDoc: make(map[string]int)}
}

// Get returns the cached move set for a layer, marking it recently used.
func (s *Store) Get(docHash string, layer int) ([]gcode.Move, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key{docHash, layer}]
	if !ok {
		return nil, false
	}
	e.lastUsed = time.Now()
	return e.moves, true
}

// Put stores a classified layer, replacing any previous entry for the same
// key, then enforces the caps.
func (s *Store) Put(docHash string, layer int, moves []gcode.Move) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{docHash, layer}
	if old, ok := s.entries[k]; ok {
		s.totalBytes -= old.bytes
		s.perDoc[docHash]--
	}
	e := &entry{moves: moves, bytes: len(moves) * moveBytes, lastUsed: time.Now()}
	s.entries[k] = e
	s.perDoc[docHash]++
	s.totalBytes += e.bytes
	s.enforceCapsLocked(docHash)
}

// InvalidateDoc drops every cached layer of one document. Callers use it
// when a handle is closed; edits invalidate implicitly through the hash.
func (s *Store) InvalidateDoc(docHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if k.docHash == docHash {
			s.totalBytes -= e.bytes
			delete(s.entries, k)
		}
	}
	delete(s.perDoc, docHash)
	if s.totalBytes < 0 {
		s.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (s *Store) Stats() (totalBytes, docs, layers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes, len(s.perDoc), len(s.entries)
}

func (s *Store) enforceCapsLocked(docHash string) {
	// Per-document depth cap: evict that document's oldest layers.
	if s.cfg.MaxPerDoc > 0 {
		for s.perDoc[docHash] > s.cfg.MaxPerDoc {
			s.evictOldestLocked(docHash)
		}
	}
	// Global memory cap: evict oldest across all documents.
	for s.cfg.MaxBytes > 0 && s.totalBytes > s.cfg.MaxBytes {
		if !s.evictOldestLocked("") {
			break
		}
	}
}

// evictOldestLocked removes the least-recently-used entry, optionally
// restricted to one document. Reports whether anything was evicted.
func (s *Store) evictOldestLocked(docHash string) bool {
	var oldestKey key
	var oldest *entry
	for k, e := range s.entries {
		if docHash != "" && k.docHash != docHash {
			continue
		}
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestKey, oldest = k, e
		}
	}
	if oldest == nil {
		return false
	}
	s.totalBytes -= oldest.bytes
	delete(s.entries, oldestKey)
	s.perDoc[oldestKey.docHash]--
	if s.perDoc[oldestKey.docHash] <= 0 {
		delete(s.perDoc, oldestKey.docHash)
	}
	return true
}
