// Package geonames reads coordinates from the GeoNames web service.
package geonames

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/temporal-communities/geolit/internal/fetcher"
)

// DefaultBaseURL is the GeoNames web service root.
const DefaultBaseURL = "http://api.geonames.org/"

// APIError is a semantic error reported by the service itself, as opposed
// to a transport failure. The hourly credit limit is the usual cause.
type APIError struct {
	Message string
	Code    int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("geonames API error %d: %s (if this is a credit limit, lower the configured rate, e.g. 1000/hour)", e.Code, e.Message)
}

// Transport is the fetch surface the client needs; satisfied by
// *fetcher.Client.
type Transport interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Client queries the GeoNames web service.
type Client struct {
	transport Transport
	baseURL   string
	username  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the service root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a GeoNames client. The username is the registered
// account credential the service requires on every request.
func NewClient(transport Transport, username string, opts ...Option) *Client {
	c := &Client{transport: transport, baseURL: DefaultBaseURL, username: username}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

type geonameResponse struct {
	XMLName xml.Name `xml:"geoname"`
	Lat     *float64 `xml:"lat"`
	Lng     *float64 `xml:"lng"`
	Name    string   `xml:"name"`
}

type statusResponse struct {
	XMLName xml.Name `xml:"geonames"`
	Status  *struct {
		Message string `xml:"message,attr"`
		Value   int    `xml:"value,attr"`
	} `xml:"status"`
	Geoname *geonameResponse `xml:"geoname"`
}

// GetCoordinates fetches the coordinates of one GeoNames feature. It
// returns nil without error when the feature carries no usable
// coordinates, and *APIError when the service reports a semantic failure.
func (c *Client) GetCoordinates(ctx context.Context, geonameID string) (*Coordinates, error) {
	q := url.Values{}
	q.Set("geonameId", geonameID)
	q.Set("username", c.username)

	resp, err := c.transport.Fetch(ctx, c.baseURL+"get?"+q.Encode())
	if err != nil {
		return nil, eris.Wrapf(err, "fetching geoname %s", geonameID)
	}

	body, err := decodeBody(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "decoding geoname %s", geonameID)
	}
	if body.Status != nil {
		return nil, &APIError{Message: body.Status.Message, Code: body.Status.Value}
	}
	geoname := body.Geoname
	if geoname == nil {
		return nil, eris.Errorf("geoname %s: response has neither geoname nor status", geonameID)
	}
	if geoname.Lat == nil || geoname.Lng == nil {
		zap.L().Warn("geoname has no coordinates",
			zap.String("geoname_id", geonameID),
			zap.String("name", geoname.Name),
		)
		return nil, nil
	}

	zap.L().Debug("resolved coordinates",
		zap.String("geoname_id", geonameID),
		zap.Float64("lat", *geoname.Lat),
		zap.Float64("lng", *geoname.Lng),
	)
	return &Coordinates{Latitude: *geoname.Lat, Longitude: *geoname.Lng}, nil
}

// decodeBody parses the service XML, which arrives either as a bare
// <geoname> document or wrapped in <geonames> with an optional <status>.
func decodeBody(raw []byte) (*statusResponse, error) {
	var wrapped statusResponse
	if err := unmarshalXML(raw, &wrapped); err == nil {
		return &wrapped, nil
	}

	var bare geonameResponse
	if err := unmarshalXML(raw, &bare); err != nil {
		return nil, err
	}
	return &statusResponse{Geoname: &bare}, nil
}

func unmarshalXML(raw []byte, v any) error {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder.Decode(v)
}
