package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temporal-communities/geolit/internal/fetcher"
)

// entityServer serves canned wbgetentities responses keyed by entity id.
func entityServer(t *testing.T, entities map[string]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "wbgetentities", r.URL.Query().Get("action"))
		require.Equal(t, "no", r.URL.Query().Get("redirects"))
		id := r.URL.Query().Get("ids")
		body, ok := entities[id]
		if !ok {
			body = fmt.Sprintf(`{"entities": {"%s": {"id": "%s", "missing": ""}}}`, id, id)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, entities map[string]string) *Client {
	t.Helper()
	ts := entityServer(t, entities)
	transport, err := fetcher.New("1000/second")
	require.NoError(t, err)
	t.Cleanup(transport.Close)
	return NewClient(transport, WithBaseURL(ts.URL))
}

func TestGetPropertyReturnsClaimTargetLabel(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"Q170558": `{"entities": {"Q170558": {"id": "Q170558", "claims": {
			"P495": [{"mainsnak": {"snaktype": "value", "datavalue": {"value": {"id": "Q40"}}}}]
		}}}}`,
		"Q40": `{"entities": {"Q40": {"id": "Q40", "labels": {
			"en": {"language": "en", "value": "Austria"},
			"de": {"language": "de", "value": "Österreich"}
		}}}}`,
	})

	label, err := client.GetProperty(context.Background(), "Q170558", PropertyCountryOfOrigin)
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, "Austria", *label)
}

func TestGetPropertyNoClaim(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"Q170558": `{"entities": {"Q170558": {"id": "Q170558", "claims": {}}}}`,
	})

	label, err := client.GetProperty(context.Background(), "Q170558", PropertyPlaceOfBirth)
	require.NoError(t, err)
	assert.Nil(t, label)
}

func TestGetPropertyUnknownValueSnak(t *testing.T) {
	for _, snaktype := range []string{"somevalue", "novalue"} {
		t.Run(snaktype, func(t *testing.T) {
			client := newTestClient(t, map[string]string{
				"Q1": fmt.Sprintf(`{"entities": {"Q1": {"id": "Q1", "claims": {
					"P495": [{"mainsnak": {"snaktype": "%s"}}]
				}}}}`, snaktype),
			})

			label, err := client.GetProperty(context.Background(), "Q1", PropertyCountryOfOrigin)
			require.NoError(t, err)
			assert.Nil(t, label)
		})
	}
}

func TestGetPropertyFollowsOneRedirect(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"Q999": `{"entities": {"Q999": {"id": "Q999", "redirects": {"from": "Q999", "to": "Q170558"}}}}`,
		"Q170558": `{"entities": {"Q170558": {"id": "Q170558", "claims": {
			"P495": [{"mainsnak": {"snaktype": "value", "datavalue": {"value": {"id": "Q40"}}}}]
		}}}}`,
		"Q40": `{"entities": {"Q40": {"id": "Q40", "labels": {"en": {"language": "en", "value": "Austria"}}}}}`,
	})

	label, err := client.GetProperty(context.Background(), "Q999", PropertyCountryOfOrigin)
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, "Austria", *label)
}

func TestGetPropertyChainedRedirectIsError(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"Q1": `{"entities": {"Q1": {"id": "Q1", "redirects": {"from": "Q1", "to": "Q2"}}}}`,
		"Q2": `{"entities": {"Q2": {"id": "Q2", "redirects": {"from": "Q2", "to": "Q3"}}}}`,
	})

	_, err := client.GetProperty(context.Background(), "Q1", PropertyCountryOfOrigin)
	assert.ErrorContains(t, err, "itself a redirect")
}

func TestGetPropertyMissingEntity(t *testing.T) {
	client := newTestClient(t, nil)

	_, err := client.GetProperty(context.Background(), "Q424242", PropertyCountryOfOrigin)
	assert.ErrorContains(t, err, "does not exist")
}

func TestGetLabelAndAliases(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"Q170558": `{"entities": {"Q170558": {"id": "Q170558",
			"labels": {"de": {"language": "de", "value": "Der Process"}},
			"aliases": {
				"de": [{"language": "de", "value": "Der Prozess"}, {"language": "de", "value": "Der Proceß"}],
				"en": [{"language": "en", "value": "The Trial"}]
			}
		}}}`,
	})

	label, aliases, err := client.GetLabelAndAliases(context.Background(), "Q170558")
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, "Der Process", *label)
	assert.ElementsMatch(t, []string{"Der Prozess", "Der Proceß", "The Trial"}, aliases)
}

func TestGetLabelAndAliasesNoGermanLabel(t *testing.T) {
	client := newTestClient(t, map[string]string{
		"Q5": `{"entities": {"Q5": {"id": "Q5",
			"labels": {"en": {"language": "en", "value": "human"}},
			"aliases": {}
		}}}`,
	})

	label, aliases, err := client.GetLabelAndAliases(context.Background(), "Q5")
	require.NoError(t, err)
	assert.Nil(t, label)
	assert.Nil(t, aliases)
}
