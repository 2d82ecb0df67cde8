// Package wikidata reads entity claims, labels and aliases from the
// wbgetentities API.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/fetcher"
)

// DefaultBaseURL is the Wikidata action API endpoint.
const DefaultBaseURL = "https://www.wikidata.org/w/api.php"

// Well-known property ids.
const (
	PropertyCountryOfOrigin = "P495"
	PropertyPlaceOfBirth    = "P19"
)

// Transport is the fetch surface the client needs; satisfied by
// *fetcher.Client.
type Transport interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Client queries the Wikidata API.
type Client struct {
	transport Transport
	baseURL   string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a Wikidata client over the given transport.
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{transport: transport, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type entitiesResponse struct {
	Entities map[string]entity `json:"entities"`
}

type entity struct {
	ID        string             `json:"id"`
	Missing   *string            `json:"missing"`
	Redirects *redirectInfo      `json:"redirects"`
	Claims    map[string][]claim `json:"claims"`
	Labels    map[string]term    `json:"labels"`
	Aliases   map[string][]term  `json:"aliases"`
}

type redirectInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type claim struct {
	MainSnak snak `json:"mainsnak"`
}

type snak struct {
	SnakType  string `json:"snaktype"`
	DataValue struct {
		Value struct {
			ID string `json:"id"`
		} `json:"value"`
	} `json:"datavalue"`
}

type term struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// getEntity fetches one entity with the given props, resolving at most one
// redirect. A redirect whose target is itself a redirect or missing is an
// error; deeper chains do not occur in practice.
func (c *Client) getEntity(ctx context.Context, entityID, props string) (*entity, error) {
	ent, err := c.fetchEntity(ctx, entityID, props)
	if err != nil {
		return nil, err
	}
	if ent.Redirects == nil {
		return ent, nil
	}

	target := ent.Redirects.To
	zap.L().Debug("entity is a redirect",
		zap.String("entity", entityID),
		zap.String("target", target),
	)
	ent, err = c.fetchEntity(ctx, target, props)
	if err != nil {
		return nil, err
	}
	if ent.Redirects != nil {
		return nil, eris.Errorf("entity %s redirects to %s which is itself a redirect", entityID, target)
	}
	return ent, nil
}

func (c *Client) fetchEntity(ctx context.Context, entityID, props string) (*entity, error) {
	q := url.Values{}
	q.Set("action", "wbgetentities")
	q.Set("ids", entityID)
	q.Set("props", props)
	q.Set("redirects", "no")
	q.Set("format", "json")

	resp, err := c.transport.Fetch(ctx, fmt.Sprintf("%s?%s", c.baseURL, q.Encode()))
	if err != nil {
		return nil, eris.Wrapf(err, "fetching entity %s", entityID)
	}

	var er entitiesResponse
	if err := json.Unmarshal(resp.Body, &er); err != nil {
		return nil, eris.Wrapf(err, "decoding entity %s", entityID)
	}

	ent, ok := er.Entities[entityID]
	if !ok {
		// the API keys redirected responses by the target id
		for _, e := range er.Entities {
			ent = e
			ok = true
			break
		}
	}
	if !ok {
		return nil, eris.Errorf("entity %s not in response", entityID)
	}
	if ent.Missing != nil {
		return nil, eris.Errorf("entity %s does not exist", entityID)
	}
	return &ent, nil
}

// GetProperty returns the English label of the first claim target for the
// given property, or nil when the entity has no such claim or the claim
// records an unknown value.
func (c *Client) GetProperty(ctx context.Context, entityID, property string) (*string, error) {
	ent, err := c.getEntity(ctx, entityID, "claims")
	if err != nil {
		return nil, err
	}

	claims, ok := ent.Claims[property]
	if !ok || len(claims) == 0 {
		zap.L().Debug("entity has no claim for property",
			zap.String("entity", entityID),
			zap.String("property", property),
		)
		return nil, nil
	}

	first := claims[0].MainSnak
	if first.SnakType == "somevalue" || first.SnakType == "novalue" {
		zap.L().Debug("claim records an unknown value",
			zap.String("entity", entityID),
			zap.String("property", property),
		)
		return nil, nil
	}
	targetID := first.DataValue.Value.ID
	if targetID == "" {
		return nil, nil
	}

	target, err := c.getEntity(ctx, targetID, "labels")
	if err != nil {
		return nil, eris.Wrapf(err, "fetching claim target %s", targetID)
	}
	label, ok := target.Labels["en"]
	if !ok {
		zap.L().Debug("claim target has no English label",
			zap.String("entity", targetID),
		)
		return nil, nil
	}
	return &label.Value, nil
}

// GetLabelAndAliases returns the German label (nil when absent) and the
// aliases of an entity flattened across all languages (nil when there are
// none).
func (c *Client) GetLabelAndAliases(ctx context.Context, entityID string) (*string, []string, error) {
	ent, err := c.getEntity(ctx, entityID, "labels|aliases")
	if err != nil {
		return nil, nil, err
	}

	var label *string
	if de, ok := ent.Labels["de"]; ok {
		label = &de.Value
	}

	var aliases []string
	for _, terms := range ent.Aliases {
		for _, t := range terms {
			aliases = append(aliases, t.Value)
		}
	}
	return label, aliases, nil
}
