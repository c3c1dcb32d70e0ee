// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON (API clients) or form-encoded (htmx forms); both are
// read through the same parser.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"casa/internal/aggregate"
	"casa/internal/core"
	"casa/internal/services"
)

const (
	maxBodyBytes = 64 << 10
	maxMonths    = 60
	maxTopN      = 50
	maxDays      = 3660
)

var errBadRequest = errors.New("bad request")

// RequestBodyParser reads a JSON or form body once and serves string values
// from either.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = fmt.Errorf("%w: read body: %w", errBadRequest, p.err)
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON: %w", errBadRequest, err)
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form: %w", errBadRequest, p.err)
	}
	return p.err
}

// Get returns a sanitized string value from the parsed data. JSON numbers
// and booleans are rendered as text.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// transactionRequest is the wire shape of a new transaction. Every field is
// optional on the wire; missing or malformed values surface as validation
// errors when converted.
type transactionRequest struct {
	Name     string
	Amount   string
	Category string
	Date     string
	Notes    string
	Type     string // "income" forces the income category
}

func parseTransactionRequest(p *RequestBodyParser) (transactionRequest, error) {
	if err := p.Parse(); err != nil {
		return transactionRequest{}, err
	}
	return transactionRequest{
		Name:     p.Get("name"),
		Amount:   p.Get("amount"),
		Category: p.Get("category"),
		Date:     p.Get("date"),
		Notes:    p.Get("notes"),
		Type:     strings.ToLower(p.Get("type")),
	}, nil
}

// toTransaction converts the request. Only wire-format problems are caught
// here; business rules are left to the service.
func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: amount %q: %w", services.ErrValidation, req.Amount, err)
	}

	var date core.Date
	if req.Date != "" {
		if date, err = core.ParseDate(req.Date); err != nil {
			return core.Transaction{}, fmt.Errorf("%w: %w", services.ErrValidation, err)
		}
	}

	category := req.Category
	if req.Type == "income" {
		category = core.IncomeCategory
	}

	return core.Transaction{
		Name:     req.Name,
		Amount:   amount,
		Category: category,
		Date:     date,
		Notes:    req.Notes,
	}, nil
}

// parseSummaryOptions reads days, months and top, falling back to defaults
// for missing or out-of-range values.
func parseSummaryOptions(query url.Values, defaults aggregate.Options) aggregate.Options {
	opts := defaults
	opts.RecentDays = intParam(query, "days", opts.RecentDays, maxDays)
	opts.Months = intParam(query, "months", opts.Months, maxMonths)
	opts.TopN = intParam(query, "top", opts.TopN, maxTopN)
	return opts.WithDefaults()
}

func intParam(query url.Values, key string, def, maxVal int) int {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxVal {
		return def
	}
	return n
}

// listParams are the sort and filter controls of a transaction list.
type listParams struct {
	Key       aggregate.SortKey
	Direction aggregate.SortDirection
	Category  string
}

func parseListParams(query url.Values) listParams {
	return listParams{
		Key:       aggregate.ParseSortKey(query.Get("sort")),
		Direction: aggregate.ParseSortDirection(query.Get("dir")),
		Category:  sanitizeInput(query.Get("category")),
	}
}

func (p listParams) apply(txs []core.Transaction) []core.Transaction {
	return aggregate.SortAndFilter(txs, p.Key, p.Direction, p.Category)
}

// parseField reads the single value of a one-field body such as
// {"name": "..."} or email=...
func parseField(p *RequestBodyParser, key string) (string, error) {
	if err := p.Parse(); err != nil {
		return "", err
	}
	return p.Get(key), nil
}
