package areacode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabulary = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
         xmlns:skos="http://www.w3.org/2004/02/skos/core#">
  <skos:Concept rdf:about="https://d-nb.info/standards/vocab/gnd/geographic-area-code#XA-DE">
    <skos:prefLabel xml:lang="de">Deutschland</skos:prefLabel>
    <skos:prefLabel xml:lang="en">Germany</skos:prefLabel>
    <rdfs:seeAlso rdf:resource="https://www.geonames.org/2921044"/>
  </skos:Concept>
  <skos:Concept rdf:about="https://d-nb.info/standards/vocab/gnd/geographic-area-code#XA-AT">
    <skos:prefLabel xml:lang="en">Austria</skos:prefLabel>
    <rdfs:seeAlso rdf:resource="https://example.org/not-geonames"/>
    <rdfs:seeAlso rdf:resource="https://www.geonames.org/2782113/"/>
    <rdfs:seeAlso rdf:resource="https://www.geonames.org/9999999"/>
  </skos:Concept>
  <skos:Concept rdf:about="https://d-nb.info/standards/vocab/gnd/geographic-area-code#ZZ">
    <skos:prefLabel xml:lang="en">Unknown region</skos:prefLabel>
  </skos:Concept>
  <skos:Concept rdf:about="https://example.org/unrelated#FOO">
    <skos:prefLabel xml:lang="en">Elsewhere</skos:prefLabel>
    <rdfs:seeAlso rdf:resource="https://www.geonames.org/1"/>
  </skos:Concept>
</rdf:RDF>`

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper([]byte(testVocabulary))
	require.NoError(t, err)
	return m
}

func TestMapperCodeToGeoNames(t *testing.T) {
	m := newTestMapper(t)

	id, ok := m.GeoNamesID(VocabularyPrefix + "XA-DE")
	require.True(t, ok)
	assert.Equal(t, "2921044", id)

	// first GeoNames reference wins when a concept lists several
	id, ok = m.GeoNamesID(VocabularyPrefix + "XA-AT")
	require.True(t, ok)
	assert.Equal(t, "2782113", id)

	// surrounding whitespace is tolerated
	id, ok = m.GeoNamesID("  " + VocabularyPrefix + "XA-DE ")
	require.True(t, ok)
	assert.Equal(t, "2921044", id)

	_, ok = m.GeoNamesID(VocabularyPrefix + "XZ-NOPE")
	assert.False(t, ok)

	// concepts outside the vocabulary namespace are ignored
	_, ok = m.GeoNamesID("https://example.org/unrelated#FOO")
	assert.False(t, ok)
}

func TestMapperLabelToCode(t *testing.T) {
	m := newTestMapper(t)

	code, ok := m.CodeForLabel("Germany")
	require.True(t, ok)
	assert.Equal(t, VocabularyPrefix+"XA-DE", code)

	code, ok = m.CodeForLabel(" Austria ")
	require.True(t, ok)
	assert.Equal(t, VocabularyPrefix+"XA-AT", code)

	// only English prefLabels enter the table
	_, ok = m.CodeForLabel("Deutschland")
	assert.False(t, ok)

	_, ok = m.CodeForLabel("Atlantis")
	assert.False(t, ok)
}

func TestMapperSpecialCaseCodes(t *testing.T) {
	m := newTestMapper(t)

	tests := map[string]string{
		"XS":      "390903",
		"XT":      "8354456",
		"XX":      "12218088",
		"XA-CSHH": "3077311",
		"XA-SUHH": "2017370",
	}
	for fragment, want := range tests {
		id, ok := m.GeoNamesID(VocabularyPrefix + fragment)
		require.True(t, ok, fragment)
		assert.Equal(t, want, id, fragment)
	}
}

func TestMapperSpecialCaseLabels(t *testing.T) {
	m := newTestMapper(t)

	tests := map[string]string{
		"England":                    "XA-GB",
		"Scotland":                   "XA-GB",
		"Russian Empire":             "XA-RU",
		"Yuan dynasty":               "XB-CN",
		"United States of America":   "XD-US",
		"West Germany":               "XA-DE",
		"Kingdom of the Netherlands": "XA-NL",
	}
	for label, fragment := range tests {
		code, ok := m.CodeForLabel(label)
		require.True(t, ok, label)
		assert.Equal(t, VocabularyPrefix+fragment, code, label)
	}
}

func TestUnknownRegionHasNoGeoNamesID(t *testing.T) {
	m := newTestMapper(t)
	_, ok := m.GeoNamesID(UnknownRegion)
	assert.False(t, ok)
}

func TestNumericID(t *testing.T) {
	assert.Equal(t, "2921044", NumericID("https://www.geonames.org/2921044"))
	assert.Equal(t, "2921044", NumericID("https://www.geonames.org/2921044/berlin.html"))
	assert.Equal(t, "", NumericID("https://www.geonames.org/"))
}

func TestNewMapperRejectsMalformedVocabulary(t *testing.T) {
	_, err := NewMapper([]byte("<rdf:RDF"))
	assert.Error(t, err)
}
