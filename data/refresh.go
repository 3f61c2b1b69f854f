// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"fmt"
	"strings"
)

// RefreshPolicy decides whether a cached input file is downloaded again
type RefreshPolicy string

const (
	AlwaysRefresh RefreshPolicy = "always"
	SkipIfExists  RefreshPolicy = "skip"
	PromptCaller  RefreshPolicy = "prompt"
)

// Prompter asks the operator a yes/no question
type Prompter interface {
	Confirm(question string) (bool, error)
}

// PrompterFunc adapts a function to the Prompter interface
type PrompterFunc func(question string) (bool, error)

func (f PrompterFunc) Confirm(question string) (bool, error) {
	return f(question)
}

func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch RefreshPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case AlwaysRefresh:
		return AlwaysRefresh, nil
	case SkipIfExists, "skip-if-exists":
		return SkipIfExists, nil
	case PromptCaller, "":
		return PromptCaller, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRefresh, s)
	}
}

// ShouldRefresh reports whether the resource described by question should be
// downloaded. A resource that does not exist yet is always downloaded; the
// prompter is only consulted for PromptCaller when the resource exists.
func ShouldRefresh(policy RefreshPolicy, exists bool, prompter Prompter, question string) (bool, error) {
	if !exists {
		return true, nil
	}

	switch policy {
	case AlwaysRefresh:
		return true, nil
	case SkipIfExists:
		return false, nil
	case PromptCaller:
		if prompter == nil {
			return false, nil
		}
		return prompter.Confirm(question)
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidRefresh, policy)
	}
}
