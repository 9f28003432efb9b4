package config

import "testing"

func TestLoadFromEnv_DefaultsValidate(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.WatchFolder == "" {
		t.Error("expected a default watch folder")
	}
	if cfg.BusType != "rabbit" {
		t.Errorf("BusType = %q, want rabbit", cfg.BusType)
	}
}

func TestValidate_RejectsUnknownBusType(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.BusType = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown bus type")
	}
}

func TestValidate_RequiresBucketForS3Provider(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.ImageStorage.Provider = "s3"
	cfg.ImageStorage.Bucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing bucket with s3 provider")
	}
}

func TestBuild_CompilesLayerMappingAndSerrilhaTables(t *testing.T) {
	cfg := &Config{
		LayerMapping: map[string][]string{
			"corte": {`(?i)^corte$`},
		},
		SpecialMaterialLayerMapping: map[string][]string{
			"espelho": {`(?i)espelho`},
		},
		SerrilhaSymbols: []SerrilhaSymbolConfig{
			{SemanticType: "serrilha", BlockNamePattern: `^SERR_(?P<code>\w+)$`, BladeCodeGroup: "code"},
		},
		SerrilhaTextSymbols: []SerrilhaTextMatcherConfig{
			{Pattern: `(?P<len>\d+(?:,\d+)?)x(?P<teeth>\d+)d`, SemanticTypeLiteral: "serrilha", LengthGroup: "len", ToothCountGroup: "teeth"},
		},
	}

	compiled, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(compiled.ExtractConfig.LayerMapping["corte"]) != 1 {
		t.Fatalf("expected one compiled corte pattern")
	}
	if !compiled.ExtractConfig.LayerMapping["corte"][0].MatchString("Corte") {
		t.Error("expected case-insensitive match on compiled layer pattern")
	}
	if len(compiled.SpecialMaterialLayerMapping["espelho"]) != 1 {
		t.Fatalf("expected one compiled material pattern")
	}
	if len(compiled.Recognizer.InsertSymbols) != 1 {
		t.Fatalf("expected one compiled insert symbol")
	}
	if len(compiled.Recognizer.TextMatchers) != 1 {
		t.Fatalf("expected one compiled text matcher")
	}
}

func TestBuild_RejectsMalformedPattern(t *testing.T) {
	cfg := &Config{
		LayerMapping: map[string][]string{
			"corte": {`(unterminated`},
		},
	}
	if _, err := cfg.Build(); err == nil {
		t.Error("expected an error for a malformed regex pattern")
	}
}
