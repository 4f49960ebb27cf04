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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/penny-vault/pv-tracker/common"
	"github.com/penny-vault/pv-tracker/observability/opentelemetry"
)

const (
	DefaultTiingoURL = "https://api.tiingo.com"
)

type tiingoQuoteResponse struct {
	Ticker    string  `json:"ticker"`
	Timestamp string  `json:"timestamp"`
	TngoLast  float64 `json:"tngoLast"`
	Last      float64 `json:"last"`
	PrevClose float64 `json:"prevClose"`
}

type tiingoPriceResponse struct {
	Date        string  `json:"date"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Open        float64 `json:"open"`
	Volume      int64   `json:"volume"`
	AdjClose    float64 `json:"adjClose"`
	DivCash     float64 `json:"divCash"`
	SplitFactor float64 `json:"splitFactor"`
}

// Tiingo fetches quotes from the IEX endpoint and end-of-day prices from the
// daily endpoint of api.tiingo.com
type Tiingo struct {
	token   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// TiingoOption configures a Tiingo client
type TiingoOption func(*Tiingo)

// WithTiingoURL overrides the API base URL
func WithTiingoURL(u string) TiingoOption {
	return func(t *Tiingo) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit caps the number of requests per second; 0 disables limiting
func WithRateLimit(perSecond float64) TiingoOption {
	return func(t *Tiingo) {
		if perSecond <= 0 {
			t.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout sets the per request timeout
func WithTimeout(d time.Duration) TiingoOption {
	return func(t *Tiingo) {
		t.client.Timeout = d
	}
}

// NewTiingo creates a new Tiingo client
func NewTiingo(token string, opts ...TiingoOption) *Tiingo {
	t := &Tiingo{
		token:   token,
		baseURL: DefaultTiingoURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetQuote returns the last price of a single symbol
func (t *Tiingo) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	quotes, err := t.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	for _, q := range quotes {
		if q.Symbol == common.NormalizeSymbol(symbol) {
			return q, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
}

// GetQuotes returns the last price of every requested symbol Tiingo knows.
// Unknown symbols are omitted from the result.
func (t *Tiingo) GetQuotes(ctx context.Context, symbols []string) ([]*Quote, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetQuotes")
	defer span.End()

	symbols = common.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return []*Quote{}, nil
	}

	span.SetAttributes(attribute.StringSlice("Symbols", symbols))

	params := url.Values{}
	params.Set("tickers", strings.Join(symbols, ","))
	endpoint := fmt.Sprintf("%s/iex/", t.baseURL)

	resp := []tiingoQuoteResponse{}
	if err := t.get(ctx, endpoint, params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tiingo quote request failed")
		return nil, err
	}

	quotes := make([]*Quote, 0, len(resp))
	for _, r := range resp {
		price := r.TngoLast
		if price == 0 {
			price = r.Last
		}
		q := &Quote{
			Symbol:        common.NormalizeSymbol(r.Ticker),
			Price:         price,
			PreviousClose: r.PrevClose,
		}
		if r.PrevClose != 0 {
			q.Change = common.RoundMoney(price - r.PrevClose)
			q.ChangePercent = common.RoundPercent(common.RelativeGrowth(price, r.PrevClose))
		}
		if ts, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			q.Timestamp = ts
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

// GetHistoricalCloses returns the daily closes between from and to
func (t *Tiingo) GetHistoricalCloses(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetHistoricalCloses")
	defer span.End()

	if to.Before(from) {
		return nil, ErrInvalidTimeRange
	}

	symbol = common.NormalizeSymbol(symbol)
	span.SetAttributes(
		attribute.String("Symbol", symbol),
		attribute.String("StartDate", from.Format("2006-01-02")),
		attribute.String("EndDate", to.Format("2006-01-02")),
	)

	params := url.Values{}
	params.Set("startDate", from.Format("2006-01-02"))
	params.Set("endDate", to.Format("2006-01-02"))
	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices", t.baseURL, url.PathEscape(strings.ToLower(symbol)))

	resp := []tiingoPriceResponse{}
	if err := t.get(ctx, endpoint, params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tiingo price request failed")
		return nil, err
	}

	points := make([]PricePoint, 0, len(resp))
	for _, r := range resp {
		if len(r.Date) < 10 {
			log.Warn().Str("Symbol", symbol).Str("Date", r.Date).Msg("skipping tiingo price with invalid date")
			continue
		}
		points = append(points, PricePoint{
			Date:     r.Date[:10],
			Close:    r.Close,
			AdjClose: r.AdjClose,
		})
	}

	return points, nil
}

// get issues a GET request and decodes the JSON body into out
func (t *Tiingo) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	subLog := log.With().Str("Url", endpoint).Str("Query", params.Encode()).Logger()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	params.Set("token", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		subLog.Error().Err(err).Msg("tiingo http request failed")
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSymbolNotFound
	}

	if resp.StatusCode >= 400 {
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("tiingo returned invalid response code")
		return fmt.Errorf("%w: HTTP status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		subLog.Error().Err(err).Msg("could not read tiingo body")
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		subLog.Error().Err(err).Bytes("Body", body).Msg("could not unmarshal json")
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return nil
}
