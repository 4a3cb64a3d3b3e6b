// Package trainscript renders a Python training script from a template and
// user supplied key=value parameters.
package trainscript

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dataset-m/dsm/internal/logger"
)

//go:embed train.py.tmpl
var DefaultTemplate string

// ErrInvalidKey is returned for parameter names that cannot be Python keyword arguments
var ErrInvalidKey = errors.New("parameter name is not a valid Python identifier")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true, "def": true,
	"del": true, "elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// ScriptFile is the name Generate writes
const ScriptFile = "train.py"

// DefaultModel is used when Data.Model is empty
const DefaultModel = "yolov8n.pt"

// Kind is the coerced type of a parameter value
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
)

// Param is one coerced key=value pair
type Param struct {
	Key   string
	Raw   string
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
}

// Literal renders the value as a Python literal
func (p Param) Literal() string {
	switch p.Kind {
	case Int:
		return strconv.FormatInt(p.Int, 10)
	case Float:
		s := strconv.FormatFloat(p.Float, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	case Bool:
		if p.Bool {
			return "True"
		}
		return "False"
	default:
		return strconv.Quote(p.Raw)
	}
}

// Coerce types a raw value: a value containing "." becomes a float when it
// parses, otherwise an int when it parses, otherwise a string. true and false
// become booleans.
func Coerce(key, raw string) Param {
	p := Param{Key: key, Raw: raw}
	switch strings.ToLower(raw) {
	case "true":
		p.Kind, p.Bool = Bool, true
		return p
	case "false":
		p.Kind = Bool
		return p
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			p.Kind, p.Float = Float, f
			return p
		}
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		p.Kind, p.Int = Int, i
		return p
	}
	return p
}

// ParseParams reads "key=value" or "key value" pairs separated by whitespace,
// commas or newlines. Later keys override earlier ones but keep their
// original position.
func ParseParams(s string) ([]Param, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})

	var params []Param
	pos := map[string]int{}
	add := func(key, val string) error {
		if !identifier.MatchString(key) || pythonKeywords[key] {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		p := Coerce(key, val)
		if i, ok := pos[key]; ok {
			params[i] = p
			return nil
		}
		pos[key] = len(params)
		params = append(params, p)
		return nil
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if key, val, ok := strings.Cut(tok, "="); ok {
			if key == "" {
				return nil, fmt.Errorf("parameter %q has no name", tok)
			}
			if val == "" {
				if i+1 >= len(tokens) || strings.Contains(tokens[i+1], "=") {
					return nil, fmt.Errorf("parameter %q has no value", key)
				}
				i++
				val = tokens[i]
			}
			if err := add(key, val); err != nil {
				return nil, err
			}
			continue
		}

		if i+1 < len(tokens) && strings.HasPrefix(tokens[i+1], "=") {
			i++
			val := strings.TrimPrefix(tokens[i], "=")
			if val == "" {
				if i+1 >= len(tokens) {
					return nil, fmt.Errorf("parameter %q has no value", tok)
				}
				i++
				val = tokens[i]
			}
			if err := add(tok, val); err != nil {
				return nil, err
			}
			continue
		}
		if i+1 >= len(tokens) {
			return nil, fmt.Errorf("parameter %q has no value", tok)
		}
		i++
		if err := add(tok, tokens[i]); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// Data fills the template placeholders
type Data struct {
	Params   []Param
	DataYAML string
	Model    string
}

// Render substitutes {{PARAMS}}, {{DATA_YAML}} and {{MODEL}} in tmpl
func Render(tmpl string, data Data) string {
	args := make([]string, 0, len(data.Params))
	for _, p := range data.Params {
		args = append(args, p.Key+"="+p.Literal()+",")
	}

	model := data.Model
	if model == "" {
		model = DefaultModel
	}
	yml := data.DataYAML
	if yml == "" {
		yml = "train.yml"
	}

	r := strings.NewReplacer(
		"{{PARAMS}}", strings.Join(args, "\n        "),
		"{{DATA_YAML}}", yml,
		"{{MODEL}}", model,
	)
	return r.Replace(tmpl)
}

// Generate parses params and writes train.py into outputDir, next to the
// dataset manifest. An empty tmpl uses DefaultTemplate.
func Generate(outputDir, params, model, tmpl string) (string, error) {
	parsed, err := ParseParams(params)
	if err != nil {
		return "", err
	}
	if tmpl == "" {
		tmpl = DefaultTemplate
	}

	script := Render(tmpl, Data{Params: parsed, DataYAML: "train.yml", Model: model})

	path := filepath.Join(outputDir, ScriptFile)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("failed to write training script: %w", err)
	}
	logger.S().Infow("Training script generated", "path", path, "params", len(parsed))
	return path, nil
}
