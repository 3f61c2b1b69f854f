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

package report

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvrisk/risk"
)

// JSON writes the ranking as a JSON document
type JSON struct {
	Indent bool
}

type jsonSkipped struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

type jsonDocument struct {
	*risk.Table
	Skipped []jsonSkipped `json:"skipped,omitempty"`
}

// Document returns the value that is serialized for table
func Document(table *risk.Table) interface{} {
	doc := jsonDocument{Table: table}
	for _, s := range table.Skipped {
		doc.Skipped = append(doc.Skipped, jsonSkipped{Symbol: s.Symbol, Error: s.Err.Error()})
	}
	return doc
}

func (j *JSON) Extension() string {
	return ".json"
}

func (j *JSON) Write(ctx context.Context, w io.Writer, table *risk.Table) error {
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.EncodeContext(ctx, Document(table))
}
