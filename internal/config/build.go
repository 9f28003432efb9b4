package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/facasdxf/complexity-engine/internal/geometry"
	"github.com/facasdxf/complexity-engine/internal/render"
	"github.com/facasdxf/complexity-engine/internal/serrilha"
	"github.com/facasdxf/complexity-engine/internal/storage"
)

// Compiled bundles the runtime configuration derived from Config: regex
// tables compiled once at load time and handed to the engine's components,
// rather than recompiled per document.
type Compiled struct {
	ExtractTolerances geometry.Tolerances
	ExtractConfig     geometry.ExtractConfig
	Recognizer        serrilha.Recognizer
	RenderOptions     render.Options
	Storage           storage.S3Config
	UploadTimeout     time.Duration
	ParseTimeout      time.Duration
	RenderTimeout     time.Duration

	SpecialMaterialLayerMapping map[string][]*regexp.Regexp
}

// Build compiles every regex table in c and assembles the per-component
// configuration structs the worker wires together. It fails fast on any
// malformed pattern rather than leaving a broken matcher to fail silently
// per document.
func (c *Config) Build() (*Compiled, error) {
	layerMapping, err := compileLayerMapping(c.LayerMapping)
	if err != nil {
		return nil, fmt.Errorf("layer_mapping: %w", err)
	}

	materialMapping, err := compileLayerMapping(c.SpecialMaterialLayerMapping)
	if err != nil {
		return nil, fmt.Errorf("special_material_layer_mapping: %w", err)
	}

	recognizer, err := buildRecognizer(c.SerrilhaSymbols, c.SerrilhaTextSymbols)
	if err != nil {
		return nil, fmt.Errorf("serrilha matcher tables: %w", err)
	}

	return &Compiled{
		ExtractTolerances: geometry.Tolerances{
			GapTolerance:     c.GapTolerance,
			OverlapTolerance: c.OverlapTolerance,
		},
		ExtractConfig: geometry.ExtractConfig{
			LayerMapping:               layerMapping,
			ChordTolerance:             c.ChordTolerance,
			DelicateArcRadiusThreshold: c.DelicateArcRadiusThreshold,
		},
		Recognizer: recognizer,
		RenderOptions: render.Options{
			DPI:          c.ImageDpi,
			PaddingRatio: c.ImagePadding,
		},
		Storage: storage.S3Config{
			Region:          c.ImageStorage.Region,
			Endpoint:        c.ImageStorage.Endpoint,
			PathStyle:       c.ImageStorage.PathStyle,
			AccessKeyID:     c.ImageStorage.AccessKeyID,
			SecretAccessKey: c.ImageStorage.SecretAccessKey,
			PublicBaseURL:   c.ImageStorage.PublicBaseURL,
		},
		UploadTimeout:               time.Duration(c.ImageStorage.UploadTimeoutSeconds) * time.Second,
		ParseTimeout:                time.Duration(c.ParseTimeoutSeconds) * time.Second,
		RenderTimeout:               time.Duration(c.RenderTimeoutSeconds) * time.Second,
		SpecialMaterialLayerMapping: materialMapping,
	}, nil
}

func compileLayerMapping(raw map[string][]string) (map[string][]*regexp.Regexp, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string][]*regexp.Regexp, len(raw))
	for semanticType, patterns := range raw {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("%s: pattern %q: %w", semanticType, p, err)
			}
			compiled = append(compiled, re)
		}
		out[semanticType] = compiled
	}
	return out, nil
}

func buildRecognizer(symbols []SerrilhaSymbolConfig, matchers []SerrilhaTextMatcherConfig) (serrilha.Recognizer, error) {
	insertSymbols := make([]serrilha.InsertSymbol, 0, len(symbols))
	for _, s := range symbols {
		blockName, err := regexp.Compile(s.BlockNamePattern)
		if err != nil {
			return serrilha.Recognizer{}, fmt.Errorf("insert symbol %s: block_name_pattern %q: %w", s.SemanticType, s.BlockNamePattern, err)
		}

		var attributePattern *regexp.Regexp
		if s.AttributePattern != "" {
			attributePattern, err = regexp.Compile(s.AttributePattern)
			if err != nil {
				return serrilha.Recognizer{}, fmt.Errorf("insert symbol %s: attribute_pattern %q: %w", s.SemanticType, s.AttributePattern, err)
			}
		}

		insertSymbols = append(insertSymbols, serrilha.InsertSymbol{
			SemanticType:     s.SemanticType,
			BlockName:        blockName,
			AttributePattern: attributePattern,
			BladeCodeGroup:   s.BladeCodeGroup,
			BladeCodeLiteral: s.BladeCodeLiteral,
		})
	}

	textMatchers := make([]serrilha.TextMatcher, 0, len(matchers))
	for _, m := range matchers {
		pattern, err := regexp.Compile(m.Pattern)
		if err != nil {
			return serrilha.Recognizer{}, fmt.Errorf("text matcher %q: %w", m.Pattern, err)
		}

		textMatchers = append(textMatchers, serrilha.TextMatcher{
			Pattern:              pattern,
			AllowMultipleMatches: m.AllowMultipleMatches,
			SemanticTypeLiteral:  m.SemanticTypeLiteral,
			SemanticTypeGroup:    m.SemanticTypeGroup,
			SemanticTypeFormat:   m.SemanticTypeFormat,
			SemanticTypeUpper:    m.SemanticTypeUpper,
			BladeCodeGroup:       m.BladeCodeGroup,
			BladeCodeLiteral:     m.BladeCodeLiteral,
			BladeCodeUpper:       m.BladeCodeUpper,
			LengthGroup:          m.LengthGroup,
			LengthFactor:         m.LengthFactor,
			ToothCountGroup:      m.ToothCountGroup,
			DefaultLength:        m.DefaultLength,
			HasDefaultLength:     m.HasDefaultLength,
			DefaultToothCount:    m.DefaultToothCount,
			HasDefaultToothCount: m.HasDefaultToothCount,
		})
	}

	return serrilha.Recognizer{InsertSymbols: insertSymbols, TextMatchers: textMatchers}, nil
}
