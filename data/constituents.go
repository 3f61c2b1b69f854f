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
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/penny-vault/pvrisk/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	ConstituentsURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
)

// DefaultExclusions lists share classes and recent spin-offs that are left
// out of the universe
var DefaultExclusions = []string{"BF.B", "BRK.B", "GEV", "SOLV"}

// Constituent is a single member of the index
type Constituent struct {
	Symbol      string `json:"symbol"`
	Security    string `json:"security"`
	Sector      string `json:"sector"`
	SubIndustry string `json:"subIndustry"`
	DateAdded   string `json:"dateAdded"`
	CIK         string `json:"cik"`
}

// FetchConstituents downloads the index membership page at url and parses the
// table with id "constituents" (or the first wikitable). Symbols found in
// exclude are dropped.
func FetchConstituents(ctx context.Context, url string, exclude []string) ([]*Constituent, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "data.FetchConstituents")
	defer span.End()

	subLog := log.With().Str("Url", url).Logger()
	span.SetAttributes(attribute.String("Url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "constituents http request failed")
		subLog.Error().Err(err).Msg("constituents http request failed")
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
		span.SetStatus(codes.Error, "invalid response code")
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("constituents request returned invalid response code")
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	constituents, err := ParseConstituents(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cannot parse constituents")
		subLog.Error().Err(err).Msg("cannot parse constituents")
		return nil, err
	}

	excluded := make(map[string]bool, len(exclude))
	for _, sym := range exclude {
		excluded[strings.ToUpper(strings.TrimSpace(sym))] = true
	}

	res := make([]*Constituent, 0, len(constituents))
	for _, c := range constituents {
		if excluded[c.Symbol] {
			subLog.Debug().Str("Symbol", c.Symbol).Msg("excluding constituent")
			continue
		}
		res = append(res, c)
	}

	span.SetAttributes(attribute.Int("Constituents", len(res)))
	subLog.Info().Int("Constituents", len(res)).Int("Excluded", len(constituents)-len(res)).Msg("downloaded index constituents")

	return res, nil
}

// ParseConstituents extracts the constituents table from an HTML document
func ParseConstituents(r io.Reader) ([]*Constituent, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	table := findTable(doc)
	if table == nil {
		return nil, ErrConstituentsMissing
	}

	var rows [][]string
	var header []string
	walk(table, func(n *html.Node) bool {
		if n.DataAtom != atom.Tr {
			return true
		}

		cells := make([]string, 0, 8)
		isHeader := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.DataAtom {
			case atom.Th:
				isHeader = true
				cells = append(cells, nodeText(c))
			case atom.Td:
				cells = append(cells, nodeText(c))
			}
		}

		if isHeader && header == nil {
			header = cells
		} else if !isHeader && len(cells) > 0 {
			rows = append(rows, cells)
		}
		return false
	})

	colIdx := make(map[string]int, len(header))
	for idx, name := range header {
		colIdx[strings.ToLower(name)] = idx
	}

	symbolIdx, ok := colIdx["symbol"]
	if !ok {
		return nil, fmt.Errorf("%w: Symbol", ErrMissingColumn)
	}
	securityIdx, ok := colIdx["security"]
	if !ok {
		return nil, fmt.Errorf("%w: Security", ErrMissingColumn)
	}

	cell := func(row []string, name string) string {
		if idx, ok := colIdx[name]; ok && idx < len(row) {
			return row[idx]
		}
		return ""
	}

	res := make([]*Constituent, 0, len(rows))
	for _, row := range rows {
		if symbolIdx >= len(row) || securityIdx >= len(row) {
			continue
		}

		res = append(res, &Constituent{
			Symbol:      strings.ToUpper(row[symbolIdx]),
			Security:    row[securityIdx],
			Sector:      cell(row, "gics sector"),
			SubIndustry: cell(row, "gics sub-industry"),
			DateAdded:   cell(row, "date added"),
			CIK:         cell(row, "cik"),
		})
	}

	if len(res) == 0 {
		return nil, ErrConstituentsMissing
	}

	return res, nil
}

func findTable(doc *html.Node) *html.Node {
	var byID, firstWiki *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Table {
			return true
		}
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == "constituents" && byID == nil {
				byID = n
			}
			if a.Key == "class" && strings.Contains(a.Val, "wikitable") && firstWiki == nil {
				firstWiki = n
			}
		}
		return false
	})

	if byID != nil {
		return byID
	}
	return firstWiki
}

// walk visits n and its descendants depth first; fn returns false to skip the
// children of a node
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
