// Package areacode maps GND geographic area codes to GeoNames features
// and English area labels back to codes.
package areacode

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// VocabularyPrefix is the URI namespace of the GND geographic
	// area-code vocabulary. Codes are full URIs in this namespace.
	VocabularyPrefix = "https://d-nb.info/standards/vocab/gnd/geographic-area-code#"

	// UnknownRegion marks a record the authority file could only place in
	// an unspecified region. It carries no location information.
	UnknownRegion = VocabularyPrefix + "ZZ"

	// DefaultVocabularyURL serves the vocabulary as RDF/XML.
	DefaultVocabularyURL = "https://d-nb.info/standards/vocab/gnd/geographic-area-code.rdf"
)

//go:embed specialcases.yaml
var specialCasesYAML []byte

type specialCases struct {
	// code fragment (e.g. "XS") → GeoNames feature id
	GeoNames map[string]int `yaml:"geonames"`
	// English label → code fragment
	Labels map[string]string `yaml:"labels"`
}

// Mapper holds the bidirectional static tables built from the vocabulary.
// Label-to-code is many-to-one; code-to-GeoNames keeps the first reference
// each concept lists, which makes lookups deterministic.
type Mapper struct {
	codeToGeoNames map[string]string
	labelToCode    map[string]string
}

type rdfVocabulary struct {
	XMLName  xml.Name     `xml:"RDF"`
	Concepts []rdfConcept `xml:",any"`
}

type rdfConcept struct {
	About      string        `xml:"about,attr"`
	PrefLabels []rdfLabel    `xml:"prefLabel"`
	SeeAlso    []rdfResource `xml:"seeAlso"`
}

type rdfLabel struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

type rdfResource struct {
	Resource string `xml:"resource,attr"`
}

// NewMapper builds the tables from the vocabulary RDF/XML and layers the
// embedded special cases on top.
func NewMapper(vocab []byte) (*Mapper, error) {
	var doc rdfVocabulary
	decoder := xml.NewDecoder(bytes.NewReader(vocab))
	if err := decoder.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "parsing area-code vocabulary")
	}

	m := &Mapper{
		codeToGeoNames: make(map[string]string),
		labelToCode:    make(map[string]string),
	}
	for _, concept := range doc.Concepts {
		code := strings.TrimSpace(concept.About)
		if !strings.HasPrefix(code, VocabularyPrefix) {
			continue
		}
		for _, ref := range concept.SeeAlso {
			if !strings.Contains(ref.Resource, "geonames.org") {
				continue
			}
			if id := NumericID(ref.Resource); id != "" {
				m.codeToGeoNames[code] = id
				break
			}
		}
		for _, label := range concept.PrefLabels {
			if label.Lang != "en" {
				continue
			}
			text := strings.TrimSpace(label.Value)
			if text == "" {
				continue
			}
			if _, taken := m.labelToCode[text]; !taken {
				m.labelToCode[text] = code
			}
		}
	}

	var fixes specialCases
	if err := yaml.Unmarshal(specialCasesYAML, &fixes); err != nil {
		return nil, eris.Wrap(err, "parsing special cases")
	}
	for fragment, id := range fixes.GeoNames {
		m.codeToGeoNames[VocabularyPrefix+fragment] = strconv.Itoa(id)
	}
	for label, fragment := range fixes.Labels {
		m.labelToCode[label] = VocabularyPrefix + fragment
	}

	zap.L().Debug("area-code tables built",
		zap.Int("codes", len(m.codeToGeoNames)),
		zap.Int("labels", len(m.labelToCode)),
	)
	return m, nil
}

// GeoNamesID returns the GeoNames feature id for a full area-code URI.
func (m *Mapper) GeoNamesID(code string) (string, bool) {
	id, ok := m.codeToGeoNames[strings.TrimSpace(code)]
	return id, ok
}

// CodeForLabel returns the area-code URI for an English area label. Labels
// are compared exactly after trimming surrounding whitespace.
func (m *Mapper) CodeForLabel(label string) (string, bool) {
	code, ok := m.labelToCode[strings.TrimSpace(label)]
	return code, ok
}

var numericIDRe = regexp.MustCompile(`\d+`)

// NumericID extracts the first run of digits from a GeoNames URI, e.g.
// "https://www.geonames.org/2921044/" → "2921044".
func NumericID(uri string) string {
	return numericIDRe.FindString(uri)
}
