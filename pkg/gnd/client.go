// Package gnd resolves geographic area codes for literary works via the
// lobid-gnd authority search API.
package gnd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/fetcher"
	"github.com/temporal-communities/geolit/internal/normalize"
)

// DefaultBaseURL is the lobid-gnd API root.
const DefaultBaseURL = "https://lobid.org/gnd/"

// NoAreaCodeNote marks a record for which every candidate title exhausted
// without an accepted match.
const NoAreaCodeNote = "no GND area code"

// excludedTypes are entity types that indicate a search hit is not a
// literary work.
var excludedTypes = map[string]struct{}{
	"Person":               {},
	"DifferentiatedPerson": {},
	"CorporateBody":        {},
	"ConferenceOrEvent":    {},
	"MusicalWork":          {},
}

// Transport is the fetch surface the client needs; satisfied by
// *fetcher.Client.
type Transport interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Client queries the lobid-gnd API.
type Client struct {
	transport Transport
	baseURL   string
	pageSize  int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (tests point it at a local server).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithPageSize sets the search window size (default 100). Results beyond
// the window are not fetched; the client only warns when the reported
// total exceeds it.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a lobid-gnd client over the given transport.
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		baseURL:   DefaultBaseURL,
		pageSize:  100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query identifies one work to resolve.
type Query struct {
	// Author is the input author name, typically "Surname, Forename".
	Author string
	// Titles are candidate titles in priority order; empty entries are
	// skipped.
	Titles []string
	// WorkWikidataID is the known Wikidata id of the work, if any. A
	// search hit cross-referencing it is accepted without further checks.
	WorkWikidataID string
}

// Resolution is the outcome of an area-code lookup. Nil fields are absent;
// Note is set only when every title exhausted without a match.
type Resolution struct {
	Code  *string
	Label *string
	Note  *string
}

// Unresolved reports whether no area code was found.
func (r Resolution) Unresolved() bool { return r.Code == nil }

type searchResponse struct {
	TotalItems int         `json:"totalItems"`
	Member     []candidate `json:"member"`
}

type idLabel struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type candidate struct {
	Type               []string  `json:"type"`
	SameAs             []idLabel `json:"sameAs"`
	PreferredName      string    `json:"preferredName"`
	VariantName        []string  `json:"variantName"`
	FirstAuthor        []idLabel `json:"firstAuthor"`
	GeographicAreaCode []idLabel `json:"geographicAreaCode"`
}

// ResolveAreaCode tries each candidate title in order against the
// authority search and returns the first accepted hit's coded area.
// A transport failure aborts the whole attempt: "could not look up" must
// not be conflated with "looked up, not found".
func (c *Client) ResolveAreaCode(ctx context.Context, q Query) Resolution {
	for _, title := range q.Titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		zap.L().Info("resolving area code",
			zap.String("title", title),
			zap.String("author", q.Author),
		)
		norm := normalize.String(title)

		resp, err := c.transport.Fetch(ctx, c.searchURL(norm))
		if err != nil {
			zap.L().Warn("authority search failed, aborting record",
				zap.String("title", title),
				zap.Error(err),
			)
			return unresolved()
		}

		var sr searchResponse
		if err := json.Unmarshal(resp.Body, &sr); err != nil {
			zap.L().Warn("authority search returned malformed body, aborting record",
				zap.String("title", title),
				zap.Error(err),
			)
			return unresolved()
		}

		if sr.TotalItems > c.pageSize {
			zap.L().Warn("more results than the search window, extra results unseen",
				zap.String("title", title),
				zap.Int("total", sr.TotalItems),
				zap.Int("page_size", c.pageSize),
			)
		}
		if sr.TotalItems == 0 {
			zap.L().Debug("no authority results, trying next title",
				zap.String("title", title),
			)
			continue
		}

		for i, item := range sr.Member {
			if !c.matches(ctx, item, q.WorkWikidataID, norm, q.Author, i) {
				continue
			}
			code, label := firstAreaCode(item)
			return Resolution{Code: code, Label: label}
		}
	}

	return unresolved()
}

func unresolved() Resolution {
	note := NoAreaCodeNote
	return Resolution{Note: &note}
}

func (c *Client) searchURL(normTitle string) string {
	return fmt.Sprintf("%ssearch?q=%s&type=Titel&from=0&size=%d&format=json",
		c.baseURL, url.QueryEscape(normTitle), c.pageSize)
}

// matches applies the disambiguation rules to one search hit, in order of
// signal strength: type exclusion, cross-referenced Wikidata id, title
// match, first-author match (with a secondary variant-name lookup).
func (c *Client) matches(ctx context.Context, item candidate, workWikidataID, normTitle, author string, no int) bool {
	for _, typ := range item.Type {
		if _, excluded := excludedTypes[typ]; excluded {
			zap.L().Debug("result has excluded type",
				zap.Int("result", no),
				zap.Strings("type", item.Type),
			)
			return false
		}
	}

	if id := wikidataID(item.SameAs); id != "" && workWikidataID != "" && id == workWikidataID {
		zap.L().Debug("matching wikidata id", zap.String("id", id))
		return true
	}

	if !containsNormalized(titleVariants(item), normTitle) {
		zap.L().Debug("result does not contain matching title", zap.Int("result", no))
		return false
	}

	if len(item.FirstAuthor) == 0 {
		zap.L().Debug("result has no author name", zap.Int("result", no))
		return false
	}
	first := item.FirstAuthor[0]
	if first.Label != "" && normalize.Equal(first.Label, author) {
		zap.L().Debug("matching first author name", zap.String("author", first.Label))
		return true
	}
	if first.ID == "" {
		zap.L().Debug("result has no author id", zap.Int("result", no))
		return false
	}

	variants := c.authorVariants(ctx, lastPathSegment(first.ID))
	if containsNormalized(variants, normalize.String(author)) {
		zap.L().Debug("matching author variant name", zap.String("author", author))
		return true
	}

	zap.L().Info("no matching result",
		zap.String("title", normTitle),
		zap.String("author", author),
	)
	return false
}

// authorVariants fetches the author entity and reconstructs its recorded
// name variants. A failed lookup yields no variants, not an abort.
func (c *Client) authorVariants(ctx context.Context, authorID string) []string {
	resp, err := c.transport.Fetch(ctx, c.baseURL+authorID+".json")
	if err != nil {
		zap.L().Warn("author variant lookup failed",
			zap.String("author_id", authorID),
			zap.Error(err),
		)
		return nil
	}

	var entity struct {
		VariantNameEntityForThePerson []nameVariant `json:"variantNameEntityForThePerson"`
	}
	if err := json.Unmarshal(resp.Body, &entity); err != nil {
		zap.L().Warn("author entity returned malformed body",
			zap.String("author_id", authorID),
			zap.Error(err),
		)
		return nil
	}

	names := make([]string, 0, len(entity.VariantNameEntityForThePerson))
	for _, v := range entity.VariantNameEntityForThePerson {
		names = append(names, v.fullName())
	}
	return names
}

// nameVariant holds one recorded name form. Each field may arrive as a
// single string or a list of strings.
type nameVariant struct {
	Forename     stringList `json:"forename"`
	Surname      stringList `json:"surname"`
	PersonalName stringList `json:"personalName"`
}

// fullName reconstructs "surname, forename" when both parts exist, else a
// plain concatenation. Personal names count as forenames.
func (v nameVariant) fullName() string {
	forenames := append([]string{}, v.Forename...)
	forenames = append(forenames, v.PersonalName...)
	surnames := []string(v.Surname)

	if len(surnames) > 0 && len(forenames) > 0 {
		return strings.Join(surnames, " ") + ", " + strings.Join(forenames, " ")
	}
	return strings.Join(append(forenames, surnames...), " ")
}

// stringList decodes a JSON value that is either a string or an array of
// strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// titleVariants collects the preferred title and all variant titles.
func titleVariants(item candidate) []string {
	titles := append([]string{}, item.VariantName...)
	if item.PreferredName != "" {
		titles = append(titles, item.PreferredName)
	}
	return titles
}

func containsNormalized(candidates []string, normalized string) bool {
	for _, c := range candidates {
		if normalize.String(c) == normalized {
			return true
		}
	}
	return false
}

// wikidataID extracts a Wikidata entity id from a sameAs list, if present.
func wikidataID(sameAs []idLabel) string {
	for _, ref := range sameAs {
		if strings.Contains(ref.ID, "wikidata.org") {
			return lastPathSegment(ref.ID)
		}
	}
	return ""
}

func lastPathSegment(u string) string {
	idx := strings.LastIndex(u, "/")
	if idx < 0 {
		return u
	}
	return u[idx+1:]
}

// firstAreaCode extracts the first coded area of an accepted item.
// Multiple codes on one item are a known edge case; only the first is
// used.
func firstAreaCode(item candidate) (code, label *string) {
	if len(item.GeographicAreaCode) == 0 {
		zap.L().Info("accepted result has no area code")
		return nil, nil
	}
	if len(item.GeographicAreaCode) > 1 {
		zap.L().Debug("multiple area codes on one result, using first",
			zap.Int("count", len(item.GeographicAreaCode)),
		)
	}
	first := item.GeographicAreaCode[0]
	zap.L().Info("found GND area code", zap.String("code", first.ID))
	return &first.ID, &first.Label
}
