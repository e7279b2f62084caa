// Copyright 2025 Poiesic Systems
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

package vidqa

import "errors"

var (
	// ErrProviderRequired is returned when a session is created without an AI provider.
	ErrProviderRequired = errors.New("AI provider is required")

	// ErrNilStore is returned when a nil chunk store is supplied.
	ErrNilStore = errors.New("chunk store cannot be nil")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrEmptyQuestion is returned when a question holds no text.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)
