package confidence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/hupe1980/agentrt/core"
)

// Strategy selects how the Engine derives a confidence from a raw result.
type Strategy string

const (
	// StrategyExplicit reads a confidence-like field from the result.
	StrategyExplicit Strategy = "explicit"
	// StrategyPattern searches the rendered result for textual confidence statements.
	StrategyPattern Strategy = "pattern"
	// StrategyKeyword scores certainty and hedging vocabulary.
	StrategyKeyword Strategy = "keyword"
	// StrategyHybrid blends explicit-or-pattern (70%) with keyword (30%).
	StrategyHybrid Strategy = "hybrid"
)

const (
	// DefaultConfidence is used when no signal can be extracted.
	DefaultConfidence = 0.5

	keywordFloor   = 0.10
	keywordCeiling = 0.95

	hybridExplicitWeight = 0.7
	hybridKeywordWeight  = 0.3
)

var explicitFields = []string{"confidence", "_confidence", "score", "certainty", "probability"}

var structFields = []string{"confidence", "score", "certainty", "probability"}

// Options configures an Engine.
type Options struct {
	Strategy Strategy
	Default  float64
}

// Engine extracts and normalizes confidence values. The zero value is not
// usable; construct one with NewEngine.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine using the hybrid strategy and a 0.5 default.
func NewEngine(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Strategy: StrategyHybrid,
		Default:  DefaultConfidence,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Default = core.Clamp01(opts.Default)
	if opts.Strategy == "" {
		opts.Strategy = StrategyHybrid
	}

	return &Engine{opts: opts}
}

// Strategy returns the configured extraction strategy.
func (e *Engine) Strategy() Strategy { return e.opts.Strategy }

// Extract derives a confidence for raw using the configured strategy.
func (e *Engine) Extract(raw any) float64 {
	return e.ExtractWith(raw, e.opts.Strategy)
}

// ExtractWith derives a confidence for raw using strategy s. Unknown
// strategies yield the default confidence.
func (e *Engine) ExtractWith(raw any, s Strategy) float64 {
	switch s {
	case StrategyExplicit:
		if v, ok := explicitConfidence(raw); ok {
			return v
		}

		return e.opts.Default
	case StrategyPattern:
		if v, ok := patternConfidence(render(raw)); ok {
			return v
		}

		return e.opts.Default
	case StrategyKeyword:
		return e.keywordConfidence(raw)
	case StrategyHybrid:
		primary := e.opts.Default
		if v, ok := explicitConfidence(raw); ok {
			primary = v
		} else if v, ok := patternConfidence(render(raw)); ok {
			primary = v
		}

		return core.Clamp01(hybridExplicitWeight*primary + hybridKeywordWeight*e.keywordConfidence(raw))
	default:
		return e.opts.Default
	}
}

// Normalize wraps raw into a Result with a confidence in [0,1].
//
// A core.Scored value with an in-range confidence is taken verbatim and a
// *core.Result is passed through with its confidence clamped. A direct or
// one-level "metadata" confidence field is used after range normalization.
// Everything else goes through the configured strategy.
func (e *Engine) Normalize(raw any) core.Result {
	switch r := raw.(type) {
	case core.Scored:
		if r.Confidence >= 0 && r.Confidence <= 1 {
			return core.Result{Value: r.Value, Confidence: r.Confidence}
		}

		return e.Normalize(r.Value)
	case *core.Scored:
		if r == nil {
			return core.Result{Confidence: e.opts.Default}
		}

		return e.Normalize(*r)
	case *core.Result:
		if r == nil {
			return core.Result{Confidence: e.opts.Default}
		}

		res := *r.Clone()
		res.Confidence = core.Clamp01(res.Confidence)

		return res
	case core.Result:
		return e.Normalize(&r)
	}

	res := core.Result{Value: raw}
	if m, ok := raw.(map[string]any); ok {
		res.Reasoning, _ = m["reasoning"].(string)
		res.Uncertainties = stringSlice(m["uncertainties"])
	}

	if hasExplicitField(raw) {
		if v, ok := explicitConfidence(raw); ok {
			res.Confidence = v
		} else {
			res.Confidence = e.opts.Default
		}

		return res
	}

	res.Confidence = core.Clamp01(e.Extract(raw))

	return res
}

func (e *Engine) keywordConfidence(raw any) float64 {
	text := strings.ToLower(render(raw))
	score := e.opts.Default

	for _, t := range keywordTerms {
		if t.re.MatchString(text) {
			score += t.weight
		}
	}

	for _, re := range hedgePatterns {
		if re.MatchString(text) {
			score -= hedgePenalty
		}
	}

	return clamp(score, keywordFloor, keywordCeiling)
}

func patternConfidence(text string) (float64, bool) {
	for _, re := range confidencePatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return NormalizeValue(m[1])
		}
	}

	return 0, false
}

// explicitConfidence returns the first explicit confidence field found in raw.
func explicitConfidence(raw any) (float64, bool) {
	v, found := lookupExplicit(raw)
	if !found {
		return 0, false
	}

	return NormalizeValue(v)
}

func hasExplicitField(raw any) bool {
	_, found := lookupExplicit(raw)
	return found
}

func lookupExplicit(raw any) (any, bool) {
	rv := indirect(reflect.ValueOf(raw))

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}

		if v, ok := mapField(rv, explicitFields); ok {
			return v, true
		}

		if meta, ok := mapField(rv, []string{"metadata"}); ok {
			return lookupMetadata(meta)
		}
	case reflect.Struct:
		rt := rv.Type()
		for i := range rv.NumField() {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}

			name := strings.ToLower(field.Name)
			for _, f := range structFields {
				if name == f {
					return rv.Field(i).Interface(), true
				}
			}
		}

		if meta := rv.FieldByName("Metadata"); meta.IsValid() && meta.CanInterface() {
			return lookupMetadata(meta.Interface())
		}
	}

	return nil, false
}

// lookupMetadata searches one nested metadata map. Deeper levels are ignored.
func lookupMetadata(meta any) (any, bool) {
	rv := indirect(reflect.ValueOf(meta))
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	return mapField(rv, explicitFields)
}

// mapField returns the value of the first key in keys present in the
// string-keyed map m.
func mapField(m reflect.Value, keys []string) (any, bool) {
	kt := m.Type().Key()

	for _, k := range keys {
		v := m.MapIndex(reflect.ValueOf(k).Convert(kt))
		if v.IsValid() {
			return v.Interface(), true
		}
	}

	return nil, false
}

// indirect unwraps pointers and interfaces. It returns the zero Value for nil.
func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}

		rv = rv.Elem()
	}

	return rv
}

// render produces the text searched by the pattern and keyword strategies.
func render(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%v", raw)
	}

	return string(b)
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}

		return out
	default:
		return nil
	}
}
