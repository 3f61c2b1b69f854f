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
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// candidate field delimiters in order of preference
var delimiters = []rune{',', ';', '\t'}

// DetectDelimiter inspects the header line of r and returns the candidate
// delimiter that occurs most often in it. The reader is rewound to the start.
func DetectDelimiter(r io.ReadSeeker) (rune, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	if strings.TrimSpace(line) == "" {
		return 0, ErrEmptyTable
	}

	best := delimiters[0]
	bestCount := 0
	for _, d := range delimiters {
		if cnt := strings.Count(line, string(d)); cnt > bestCount {
			best = d
			bestCount = cnt
		}
	}

	return best, nil
}

// readHeader returns the first record of r using comma as delimiter and rewinds
// the reader
func readHeader(r io.ReadSeeker, comma rune) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	res := make([]string, len(header))
	copy(res, header)
	return res, nil
}

func resolveDelimiter(r io.ReadSeeker, comma rune) (rune, error) {
	if comma != 0 {
		return comma, nil
	}
	return DetectDelimiter(r)
}
