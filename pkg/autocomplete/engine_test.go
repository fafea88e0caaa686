package autocomplete

import "testing"

func TestSuggestPythonRules(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name       string
		code       string
		cursor     int
		suggestion string
		confidence float64
	}{
		{"def", "def ", 4, "function_name(param1, param2):", 0.85},
		{"class", "class ", 6, "ClassName:", 0.85},
		{"import", "import ", 7, "numpy as np", 0.75},
		{"for", "for ", 4, "i in range(10):", 0.80},
		{"if", "x = 1\nif ", 9, "condition:", 0.80},
		{"print", "print(", 6, `"Hello, World!")`, 0.70},
		{"no match", "x = 1", 5, "", 0},
		{"empty document", "", 0, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Suggest(tt.code, tt.cursor, "python")
			if got.Suggestion != tt.suggestion || got.Confidence != tt.confidence {
				t.Fatalf("Suggest(%q, %d) = %+v, want %q at %g", tt.code, tt.cursor, got, tt.suggestion, tt.confidence)
			}
		})
	}
}

func TestSuggestJavascriptRules(t *testing.T) {
	engine := NewEngine()

	if got := engine.Suggest("function ", 9, "javascript"); got.Suggestion != "functionName() {" || got.Confidence != 0.85 {
		t.Fatalf("function rule: %+v", got)
	}
	if got := engine.Suggest("const ", 6, "javascript"); got.Suggestion != "variable = " || got.Confidence != 0.80 {
		t.Fatalf("const rule: %+v", got)
	}

	// Python rules must not leak into javascript.
	if got := engine.Suggest("def ", 4, "javascript"); got.Confidence != 0 {
		t.Fatalf("cross-language match: %+v", got)
	}
}

func TestSuggestUnknownLanguage(t *testing.T) {
	engine := NewEngine()
	if got := engine.Suggest("def ", 4, "rust"); got.Suggestion != "" || got.Confidence != 0 {
		t.Fatalf("unknown language should yield nothing, got %+v", got)
	}
}

func TestSuggestIgnoresTextAfterCursor(t *testing.T) {
	engine := NewEngine()

	// The cursor sits right after "import "; the trailing junk is invisible.
	got := engine.Suggest("import trailing", 7, "python")
	if got.Suggestion != "numpy as np" {
		t.Fatalf("text after cursor influenced the rule: %+v", got)
	}
}

func TestSuggestClampsCursor(t *testing.T) {
	engine := NewEngine()

	if got := engine.Suggest("def ", 99, "python"); got.Suggestion != "function_name(param1, param2):" {
		t.Fatalf("over-length cursor not clamped: %+v", got)
	}
	if got := engine.Suggest("def ", -1, "python"); got.Confidence != 0 {
		t.Fatalf("negative cursor should see an empty prefix: %+v", got)
	}
}
