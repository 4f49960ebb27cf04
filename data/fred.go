// Copyright 2021-2022
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

package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
)

const (
	DefaultFredURL    = "https://fred.stlouisfed.org"
	DefaultFredSeries = "DGS3MO"
)

// Fred reads treasury rates from the FRED graph CSV export
type Fred struct {
	baseURL string
	series  string
	client  *http.Client
	now     func() time.Time
}

// NewFred creates a new FRED rate source. An empty baseURL or series selects
// the defaults (3-month treasury constant maturity).
func NewFred(baseURL, series string) *Fred {
	if baseURL == "" {
		baseURL = DefaultFredURL
	}
	if series == "" {
		series = DefaultFredSeries
	}
	return &Fred{
		baseURL: strings.TrimRight(baseURL, "/"),
		series:  strings.ToUpper(series),
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

// GetRiskFreeRate returns the most recent observation of the series in
// percent. FRED marks missing observations as "." which are skipped.
func (f *Fred) GetRiskFreeRate(ctx context.Context) (float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "fred.GetRiskFreeRate")
	defer span.End()

	end := f.now()
	begin := end.AddDate(0, 0, -30)

	params := url.Values{}
	params.Set("mode", "fred")
	params.Set("id", f.series)
	params.Set("cosd", begin.Format("2006-01-02"))
	params.Set("coed", end.Format("2006-01-02"))
	params.Set("fq", "Daily")
	params.Set("fam", "avg")
	endpoint := fmt.Sprintf("%s/graph/fredgraph.csv", f.baseURL)

	span.SetAttributes(attribute.String("Series", f.series))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fred http request failed")
		log.Warn().Err(err).Str("Series", f.series).Msg("fred http request failed")
		return 0, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := "fred returned invalid response code"
		span.SetStatus(codes.Error, msg)
		log.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Str("Series", f.series).Msg(msg)
		return 0, fmt.Errorf("%w: HTTP status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	rate, err := lastObservation(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not parse fred csv")
		return 0, err
	}

	span.SetAttributes(attribute.Float64("Rate", rate))
	return rate, nil
}

// lastObservation returns the value column of the last row that holds a
// number. The first row is the header (DATE or observation_date, series id).
func lastObservation(r io.Reader) (float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(rows) < 2 {
		return 0, ErrNoObservations
	}

	for ii := len(rows) - 1; ii > 0; ii-- {
		row := rows[ii]
		if len(row) < 2 {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		return val, nil
	}

	return 0, ErrNoObservations
}
