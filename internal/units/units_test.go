package units

import "testing"

func TestResolve_KnownUnits(t *testing.T) {
	tests := []struct {
		declared  string
		wantFact  float64
		wantLabel string
	}{
		{"mm", 1, "mm"},
		{"CM", 10, "cm"},
		{" m ", 1000, "m"},
		{"in", 25.4, "in"},
		{"inches", 25.4, "in"},
		{"ft", 304.8, "ft"},
		{"km", 1000000, "km"},
		{"mil", 0.0254, "mil"},
		{"yd", 914.4, "yd"},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			factor, label, err := Resolve(tt.declared, "mm")
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.declared, err)
			}
			if factor != tt.wantFact {
				t.Errorf("factor = %v, want %v", factor, tt.wantFact)
			}
			if label != tt.wantLabel {
				t.Errorf("label = %v, want %v", label, tt.wantLabel)
			}
		})
	}
}

func TestResolve_UnitlessFallsBackToDefault(t *testing.T) {
	factor, label, err := Resolve("unitless", "cm")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if factor != 10 || label != "cm" {
		t.Errorf("Resolve(unitless, cm) = %v, %v, want 10, cm", factor, label)
	}
}

func TestResolve_EmptyFallsBackToDefault(t *testing.T) {
	factor, _, err := Resolve("", "m")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if factor != 1000 {
		t.Errorf("factor = %v, want 1000", factor)
	}
}

func TestResolve_UnrecognizedDefaultFails(t *testing.T) {
	_, _, err := Resolve("unitless", "parsecs")
	if err == nil {
		t.Fatal("Resolve() error = nil, want error for unrecognized default unit")
	}
}

func TestResolve_UnrecognizedDeclaredFallsBackToDefault(t *testing.T) {
	factor, label, err := Resolve("fathoms", "mm")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if factor != 1 || label != "mm" {
		t.Errorf("Resolve(fathoms, mm) = %v, %v, want 1, mm", factor, label)
	}
}
