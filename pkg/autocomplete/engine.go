// Package autocomplete is the server's rule-based completion engine. It
// stands in for a real model behind the same request/response shape:
// pattern rules over the text before the cursor, each with a fixed
// confidence.
package autocomplete

import "strings"

// Result is one engine answer. An empty suggestion with confidence 0 means
// no rule matched.
type Result struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

type rule struct {
	suffix     string
	suggestion string
	confidence float64
}

// Rules are checked in order against the text before the cursor; the first
// suffix match wins. Text after the cursor never participates.
var rulesByLanguage = map[string][]rule{
	"python": {
		{suffix: "def ", suggestion: "function_name(param1, param2):", confidence: 0.85},
		{suffix: "class ", suggestion: "ClassName:", confidence: 0.85},
		{suffix: "import ", suggestion: "numpy as np", confidence: 0.75},
		{suffix: "for ", suggestion: "i in range(10):", confidence: 0.80},
		{suffix: "if ", suggestion: "condition:", confidence: 0.80},
		{suffix: "print(", suggestion: `"Hello, World!")`, confidence: 0.70},
	},
	"javascript": {
		{suffix: "function ", suggestion: "functionName() {", confidence: 0.85},
		{suffix: "const ", suggestion: "variable = ", confidence: 0.80},
	},
}

// Engine evaluates completion rules. It is stateless and safe for
// concurrent use.
type Engine struct {
	rules map[string][]rule
}

// NewEngine creates an engine with the built-in rule set.
func NewEngine() *Engine {
	return &Engine{rules: rulesByLanguage}
}

// Suggest evaluates the rules for the given language against the text
// before the cursor. Out-of-range cursors are clamped to the document.
func (e *Engine) Suggest(code string, cursorPosition int, language string) Result {
	if cursorPosition < 0 {
		cursorPosition = 0
	}
	if cursorPosition > len(code) {
		cursorPosition = len(code)
	}
	before := code[:cursorPosition]

	for _, r := range e.rules[language] {
		if strings.HasSuffix(before, r.suffix) {
			return Result{Suggestion: r.suggestion, Confidence: r.confidence}
		}
	}
	return Result{}
}
