/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package gcode

import "fmt"

// ParseError reports a malformed numeric literal after an X/Y/E field
// marker. Classification aborts on the first one; a silently skipped token
// would misrepresent the traced geometry.
type ParseError struct {
	Line  int    // 1-based source line number
	Field byte   // 'X', 'Y' or 'E'
	Token string // the offending token, field letter included
	Err   error  // underlying strconv error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: bad %c value %q: %v", e.Line, e.Field, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IOError reports that a G-code source could not be read or written.
// It is surfaced verbatim to the caller with the underlying cause; there is
// no retry policy.
type IOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
