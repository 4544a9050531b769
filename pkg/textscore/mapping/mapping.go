// Package mapping holds the category/keyword weight tables and crossmap
// rules that drive scoring, and loads them from YAML documents.
package mapping

import (
	"math"
	"strconv"
	"strings"
)

// Weight is a keyword weight as it appeared in the source document.
// It is coerced to a real number only when scoring.
type Weight struct {
	raw any
}

// NumericWeight wraps a float weight.
func NumericWeight(f float64) Weight { return Weight{raw: f} }

// RawWeight wraps an arbitrary scalar weight (number, string, bool, nil).
func RawWeight(v any) Weight { return Weight{raw: v} }

// Raw returns the weight value as loaded.
func (w Weight) Raw() any { return w.raw }

// Float coerces the weight to a float64. The second result is false when
// the raw value has no finite numeric interpretation; the float is then 0.
func (w Weight) Float() (float64, bool) {
	f, ok := w.float()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (w Weight) float() (float64, bool) {
	switch v := w.raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Keyword is one weighted term of a category.
type Keyword struct {
	Term   string
	Weight Weight
}

// Category is a named group of weighted keywords, in document order.
type Category struct {
	Name     string
	Keywords []Keyword
}

// Rule redirects the score of Source into the Target accumulator.
type Rule struct {
	Source string
	Target string
}

// Config is the in-memory mapping document. Categories, their keywords and
// crossmap rules keep insertion order; re-adding an existing name updates it
// in place. A Config must not be modified once scoring starts.
type Config struct {
	categories []Category
	catIndex   map[string]int
	kwIndex    []map[string]int
	crossmap   []Rule
	ruleIndex  map[string]int
}

// New returns an empty mapping config.
func New() *Config {
	return &Config{}
}

// AddCategory declares a category with no keywords if it is not present yet.
func (c *Config) AddCategory(name string) {
	c.categoryPos(name)
}

// SetWeight sets the weight of term in category, declaring either as needed.
// weight may be a float64, a Weight, or any raw scalar.
func (c *Config) SetWeight(category, term string, weight any) {
	w, ok := weight.(Weight)
	if !ok {
		w = RawWeight(weight)
	}

	pos := c.categoryPos(category)
	if k, ok := c.kwIndex[pos][term]; ok {
		c.categories[pos].Keywords[k].Weight = w
		return
	}
	c.kwIndex[pos][term] = len(c.categories[pos].Keywords)
	c.categories[pos].Keywords = append(c.categories[pos].Keywords, Keyword{Term: term, Weight: w})
}

// AddCrossmap maps source onto target, replacing any previous target.
func (c *Config) AddCrossmap(source, target string) {
	if c.ruleIndex == nil {
		c.ruleIndex = make(map[string]int)
	}
	if i, ok := c.ruleIndex[source]; ok {
		c.crossmap[i].Target = target
		return
	}
	c.ruleIndex[source] = len(c.crossmap)
	c.crossmap = append(c.crossmap, Rule{Source: source, Target: target})
}

func (c *Config) categoryPos(name string) int {
	if c.catIndex == nil {
		c.catIndex = make(map[string]int)
	}
	if pos, ok := c.catIndex[name]; ok {
		return pos
	}
	pos := len(c.categories)
	c.catIndex[name] = pos
	c.categories = append(c.categories, Category{Name: name})
	c.kwIndex = append(c.kwIndex, make(map[string]int))
	return pos
}

// Categories returns the categories in insertion order.
func (c *Config) Categories() []Category {
	if c == nil {
		return nil
	}
	return c.categories
}

// Category looks up a category by exact name.
func (c *Config) Category(name string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	pos, ok := c.catIndex[name]
	if !ok {
		return Category{}, false
	}
	return c.categories[pos], true
}

// Crossmap returns the crossmap rules in insertion order.
func (c *Config) Crossmap() []Rule {
	if c == nil {
		return nil
	}
	return c.crossmap
}

// Empty reports whether the config declares no categories and no rules.
func (c *Config) Empty() bool {
	return c == nil || (len(c.categories) == 0 && len(c.crossmap) == 0)
}
