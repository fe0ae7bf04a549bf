/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package storage handles the on-disk side of Toolpath Studio: loading
// G-code files into immutable documents, writing cleaned documents back
// atomically with backups, the JSON job manifest sidecar, and a persistent
// SQLite cache of classified layers keyed by document content hash.
package storage
