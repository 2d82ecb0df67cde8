// Package enrich drives the per-record fallback chain across the
// authority file, the knowledge base, the static area-code tables and the
// gazetteer.
package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/pkg/geonames"
	"github.com/temporal-communities/geolit/pkg/gnd"
	"github.com/temporal-communities/geolit/pkg/wikidata"
)

// Stage identifies one step of the fallback chain.
type Stage string

const (
	StageAuthorityByPrimaryTitles Stage = "authority_primary_titles"
	StageKnowledgeBaseLabels      Stage = "knowledge_base_labels"
	StageAuthorityByAliasTitles   Stage = "authority_alias_titles"
	StageCountryProperty          Stage = "country_of_origin"
	StageBirthplaceProperty       Stage = "author_birthplace"
	StageAreaCodeMapping          Stage = "area_code_mapping"
	StageGazetteerLookup          Stage = "gazetteer_lookup"
)

// Record is one bibliographic row plus its enrichment state. Enrichment
// fields are pointers so that "never looked up" stays distinguishable from
// "looked up, empty". Stages only fill absent fields; a later stage never
// overwrites an earlier one.
type Record struct {
	Author           string
	Title            string
	AltTitle         string
	WorkWikidataID   string
	AuthorWikidataID string

	GermanTitle     *string
	Aliases         []string
	AreaCode        *string
	AreaLabel       *string
	Note            *string
	CountryOfOrigin *string
	BirthPlace      *string
	// MappedCode is the area-code URI derived from a property label when
	// the authority file gave no usable code.
	MappedCode     *string
	MappedGeoNames *string
	Latitude       *float64
	Longitude      *float64

	// ResolvedBy names the stage that produced the final location signal.
	ResolvedBy Stage
}

// Located reports whether the record ended up with coordinates.
func (r *Record) Located() bool { return r.Latitude != nil && r.Longitude != nil }

// hasUsableAreaCode is true when the authority file placed the record in a
// real region. The unknown-region code carries no location and lets the
// property stages run.
func (r *Record) hasUsableAreaCode(unknownRegion string) bool {
	return r.AreaCode != nil && *r.AreaCode != unknownRegion
}

// Authority searches the authority file for a work's coded area.
type Authority interface {
	ResolveAreaCode(ctx context.Context, q gnd.Query) gnd.Resolution
}

// KnowledgeBase reads entity properties, labels and aliases.
type KnowledgeBase interface {
	GetProperty(ctx context.Context, entityID, property string) (*string, error)
	GetLabelAndAliases(ctx context.Context, entityID string) (*string, []string, error)
}

// Gazetteer resolves feature ids to coordinates.
type Gazetteer interface {
	GetCoordinates(ctx context.Context, geonameID string) (*geonames.Coordinates, error)
}

// CodeMapper holds the static area-code tables.
type CodeMapper interface {
	GeoNamesID(code string) (string, bool)
	CodeForLabel(label string) (string, bool)
}

// Orchestrator runs the fallback chain. Records are processed one at a
// time; every external source already throttles itself, so there is
// nothing to win by parallelizing and the upstream quotas to lose.
type Orchestrator struct {
	authority     Authority
	knowledgeBase KnowledgeBase
	gazetteer     Gazetteer
	mapper        CodeMapper
	unknownRegion string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithUnknownRegionCode overrides the sentinel area code treated as
// carrying no location.
func WithUnknownRegionCode(code string) Option {
	return func(o *Orchestrator) { o.unknownRegion = code }
}

// New wires an Orchestrator from its four sources.
func New(authority Authority, kb KnowledgeBase, gazetteer Gazetteer, mapper CodeMapper, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		authority:     authority,
		knowledgeBase: kb,
		gazetteer:     gazetteer,
		mapper:        mapper,
		unknownRegion: "https://d-nb.info/standards/vocab/gnd/geographic-area-code#ZZ",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Summary counts per-stage outcomes over one run.
type Summary struct {
	Records    int
	Located    int
	ResolvedBy map[Stage]int
	NoAreaCode int
	NoLocation int
}

// EnrichAll processes the records sequentially. A gazetteer API error
// aborts the run with the partial summary; everything else degrades to
// absent fields on the affected record.
func (o *Orchestrator) EnrichAll(ctx context.Context, records []*Record) (Summary, error) {
	summary := Summary{ResolvedBy: make(map[Stage]int)}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "enrichment interrupted")
		}
		if err := o.Enrich(ctx, rec); err != nil {
			return summary, eris.Wrapf(err, "enriching record %d (%s)", i, rec.Title)
		}
		summary.Records++
		if rec.Located() {
			summary.Located++
		} else {
			summary.NoLocation++
		}
		if rec.ResolvedBy != "" {
			summary.ResolvedBy[rec.ResolvedBy]++
		}
		if rec.Note != nil {
			summary.NoAreaCode++
		}
	}

	zap.L().Info("enrichment run complete",
		zap.Int("records", summary.Records),
		zap.Int("located", summary.Located),
		zap.Int("without_location", summary.NoLocation),
		zap.Int("without_area_code", summary.NoAreaCode),
		zap.Any("resolved_by", summary.ResolvedBy),
	)
	return summary, nil
}

// Enrich runs the fallback chain for one record.
func (o *Orchestrator) Enrich(ctx context.Context, rec *Record) error {
	o.authorityByPrimaryTitles(ctx, rec)
	o.knowledgeBaseLabels(ctx, rec)
	o.authorityByAliasTitles(ctx, rec)
	if err := o.propertyStages(ctx, rec); err != nil {
		return err
	}
	o.areaCodeMapping(rec)
	return o.gazetteerLookup(ctx, rec)
}

func (o *Orchestrator) authorityByPrimaryTitles(ctx context.Context, rec *Record) {
	if rec.AreaCode != nil {
		return
	}
	res := o.authority.ResolveAreaCode(ctx, gnd.Query{
		Author:         rec.Author,
		Titles:         []string{rec.Title, rec.AltTitle},
		WorkWikidataID: rec.WorkWikidataID,
	})
	setString(&rec.AreaCode, res.Code)
	setString(&rec.AreaLabel, res.Label)
	setString(&rec.Note, res.Note)
	if res.Code != nil {
		rec.ResolvedBy = StageAuthorityByPrimaryTitles
	}
}

// knowledgeBaseLabels fetches the work's German label and aliases as extra
// title candidates for the second authority pass.
func (o *Orchestrator) knowledgeBaseLabels(ctx context.Context, rec *Record) {
	if rec.AreaCode != nil || rec.WorkWikidataID == "" {
		return
	}
	label, aliases, err := o.knowledgeBase.GetLabelAndAliases(ctx, rec.WorkWikidataID)
	if err != nil {
		zap.L().Warn("label lookup failed",
			zap.String("entity", rec.WorkWikidataID),
			zap.Error(err),
		)
		return
	}
	setString(&rec.GermanTitle, label)
	if rec.Aliases == nil {
		rec.Aliases = aliases
	}
}

func (o *Orchestrator) authorityByAliasTitles(ctx context.Context, rec *Record) {
	if rec.AreaCode != nil {
		return
	}
	titles := make([]string, 0, len(rec.Aliases)+1)
	if rec.GermanTitle != nil {
		titles = append(titles, *rec.GermanTitle)
	}
	titles = append(titles, rec.Aliases...)
	if len(titles) == 0 {
		return
	}
	res := o.authority.ResolveAreaCode(ctx, gnd.Query{
		Author:         rec.Author,
		Titles:         titles,
		WorkWikidataID: rec.WorkWikidataID,
	})
	setString(&rec.AreaCode, res.Code)
	setString(&rec.AreaLabel, res.Label)
	if res.Code != nil {
		// a late authority hit supersedes the earlier miss
		rec.Note = nil
		rec.ResolvedBy = StageAuthorityByAliasTitles
	}
}

// propertyStages runs when the authority file produced nothing usable,
// including the unknown-region code.
func (o *Orchestrator) propertyStages(ctx context.Context, rec *Record) error {
	if rec.hasUsableAreaCode(o.unknownRegion) {
		return nil
	}

	if rec.CountryOfOrigin == nil && rec.WorkWikidataID != "" {
		country, err := o.knowledgeBase.GetProperty(ctx, rec.WorkWikidataID, wikidata.PropertyCountryOfOrigin)
		if err != nil {
			zap.L().Warn("country-of-origin lookup failed",
				zap.String("entity", rec.WorkWikidataID),
				zap.Error(err),
			)
		}
		setString(&rec.CountryOfOrigin, country)
		if country != nil && rec.ResolvedBy == "" {
			rec.ResolvedBy = StageCountryProperty
		}
	}

	if rec.CountryOfOrigin != nil || rec.AuthorWikidataID == "" {
		return nil
	}
	place, err := o.knowledgeBase.GetProperty(ctx, rec.AuthorWikidataID, wikidata.PropertyPlaceOfBirth)
	if err != nil {
		zap.L().Warn("birthplace lookup failed",
			zap.String("entity", rec.AuthorWikidataID),
			zap.Error(err),
		)
	}
	setString(&rec.BirthPlace, place)
	if place != nil && rec.ResolvedBy == "" {
		rec.ResolvedBy = StageBirthplaceProperty
	}
	return nil
}

// areaCodeMapping derives a GeoNames feature id, preferring the authority
// code over the property-derived labels.
func (o *Orchestrator) areaCodeMapping(rec *Record) {
	if rec.MappedGeoNames != nil {
		return
	}

	if rec.hasUsableAreaCode(o.unknownRegion) {
		if id, ok := o.mapper.GeoNamesID(*rec.AreaCode); ok {
			rec.MappedGeoNames = &id
			return
		}
		zap.L().Warn("area code has no GeoNames mapping",
			zap.String("code", *rec.AreaCode),
		)
	}

	for _, label := range []*string{rec.CountryOfOrigin, rec.BirthPlace} {
		if label == nil {
			continue
		}
		code, ok := o.mapper.CodeForLabel(*label)
		if !ok {
			zap.L().Debug("label has no area code",
				zap.String("label", *label),
			)
			continue
		}
		setString(&rec.MappedCode, &code)
		if id, ok := o.mapper.GeoNamesID(code); ok {
			rec.MappedGeoNames = &id
			return
		}
	}
}

func (o *Orchestrator) gazetteerLookup(ctx context.Context, rec *Record) error {
	if rec.Latitude != nil || rec.MappedGeoNames == nil {
		return nil
	}
	coords, err := o.gazetteer.GetCoordinates(ctx, *rec.MappedGeoNames)
	if err != nil {
		var apiErr *geonames.APIError
		if eris.As(err, &apiErr) {
			// quota exhaustion poisons every following lookup too
			return err
		}
		zap.L().Warn("gazetteer lookup failed",
			zap.String("geoname_id", *rec.MappedGeoNames),
			zap.Error(err),
		)
		return nil
	}
	if coords == nil {
		return nil
	}
	rec.Latitude = &coords.Latitude
	rec.Longitude = &coords.Longitude
	return nil
}

// setString fills dst only when it is still absent.
func setString(dst **string, v *string) {
	if *dst == nil && v != nil {
		*dst = v
	}
}
