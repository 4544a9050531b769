package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/textscore/pkg/textscore/internalerr"
)

// Loader reads mapping documents.
type Loader struct {
	Logger *zap.Logger
}

// strictDocument is the typed shape a well-formed document decodes into.
type strictDocument struct {
	Categories map[string]map[string]float64 `yaml:"categories"`
	Crossmap   map[string]string             `yaml:"crossmap"`
}

// Load reads the mapping document at path with a silent logger.
func Load(path string) (*Config, error) {
	return Loader{}.Load(path)
}

// Parse decodes a mapping document with a silent logger.
func Parse(data []byte) (*Config, error) {
	return Loader{}.Parse(data)
}

// Load reads the mapping document at path.
// An empty path or a path that does not exist yields an empty config.
func (l Loader) Load(path string) (*Config, error) {
	log := l.logger()
	if path == "" {
		return New(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Debug("mapping file not found, using empty mapping", zap.String("path", path))
		return New(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", internalerr.ErrUnreadableConfig, path, err)
	}

	cfg, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load mapping %s: %w", path, err)
	}
	log.Debug("mapping loaded",
		zap.String("path", path),
		zap.Int("categories", len(cfg.Categories())),
		zap.Int("crossmap", len(cfg.Crossmap())))
	return cfg, nil
}

// Parse decodes a mapping document. A strict typed decode is tried first;
// when the document parses but does not fit the schema, categories and
// crossmap are extracted best-effort instead. Only data that is not YAML at
// all, or whose root is not a mapping, is an error.
func (l Loader) Parse(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrUnreadableConfig, err)
	}

	doc := resolve(&root)
	if doc != nil && doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return New(), nil
		}
		doc = resolve(doc.Content[0])
	}
	if doc == nil || doc.Kind == 0 || isNull(doc) {
		return New(), nil
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: document root must be a mapping, got %s",
			internalerr.ErrUnreadableConfig, kindName(doc.Kind))
	}

	cfg, err := decodeStrict(data, doc)
	if err == nil {
		return cfg, nil
	}

	l.logger().Warn("mapping does not match schema, extracting fields best-effort", zap.Error(err))
	return l.decodeLenient(doc), nil
}

func (l Loader) logger() *zap.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return zap.NewNop()
}

// decodeStrict validates data against strictDocument, then walks doc to keep
// the document order of categories, keywords and rules.
func decodeStrict(data []byte, doc *yaml.Node) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var strict strictDocument
	if err := dec.Decode(&strict); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	cfg := New()
	if cats := lookup(doc, "categories"); cats != nil && cats.Kind == yaml.MappingNode {
		for _, cat := range pairs(cats) {
			name := cat.key.Value
			cfg.AddCategory(name)
			if cat.value.Kind != yaml.MappingNode {
				continue
			}
			for _, kw := range pairs(cat.value) {
				var w float64
				if err := kw.value.Decode(&w); err != nil {
					return nil, fmt.Errorf("category %q keyword %q: %w", name, kw.key.Value, err)
				}
				cfg.SetWeight(name, kw.key.Value, NumericWeight(w))
			}
		}
	}
	if rules := lookup(doc, "crossmap"); rules != nil && rules.Kind == yaml.MappingNode {
		for _, rule := range pairs(rules) {
			var target string
			if err := rule.value.Decode(&target); err != nil {
				return nil, fmt.Errorf("crossmap %q: %w", rule.key.Value, err)
			}
			cfg.AddCrossmap(rule.key.Value, target)
		}
	}
	return cfg, nil
}

// decodeLenient pulls whatever categories and crossmap entries have a usable
// shape out of doc. Missing keys default to empty; malformed entries are
// skipped and logged.
func (l Loader) decodeLenient(doc *yaml.Node) *Config {
	log := l.logger()
	cfg := New()

	if cats := lookup(doc, "categories"); cats != nil && !isNull(cats) {
		if cats.Kind != yaml.MappingNode {
			log.Warn("mapping categories is not a mapping, ignoring", zap.String("kind", kindName(cats.Kind)))
		} else {
			for _, cat := range pairs(cats) {
				name := cat.key.Value
				table := cat.value
				switch {
				case isNull(table):
					cfg.AddCategory(name)
				case table.Kind != yaml.MappingNode:
					log.Warn("category table is not a mapping, skipping", zap.String("category", name))
				default:
					cfg.AddCategory(name)
					for _, kw := range pairs(table) {
						term := kw.key.Value
						value := kw.value
						if value.Kind != yaml.ScalarNode {
							log.Warn("keyword weight is not a scalar, skipping",
								zap.String("category", name), zap.String("keyword", term))
							continue
						}
						var raw any
						if err := value.Decode(&raw); err != nil {
							raw = value.Value
						}
						cfg.SetWeight(name, term, RawWeight(raw))
					}
				}
			}
		}
	}

	if rules := lookup(doc, "crossmap"); rules != nil && !isNull(rules) {
		if rules.Kind != yaml.MappingNode {
			log.Warn("mapping crossmap is not a mapping, ignoring", zap.String("kind", kindName(rules.Kind)))
		} else {
			for _, rule := range pairs(rules) {
				source := rule.key.Value
				target := rule.value
				if target.Kind != yaml.ScalarNode || isNull(target) {
					log.Warn("crossmap target is not a scalar, skipping", zap.String("source", source))
					continue
				}
				cfg.AddCrossmap(source, target.Value)
			}
		}
	}

	return cfg
}

// lookup returns the value node for key in a mapping node. Explicit keys
// override merged ones.
func lookup(m *yaml.Node, key string) *yaml.Node {
	var found *yaml.Node
	for _, p := range pairs(m) {
		if p.key.Value == key {
			found = p.value
		}
	}
	return found
}

// pair is one key/value entry of a mapping node, value alias-resolved.
type pair struct {
	key, value *yaml.Node
}

// maxMergeDepth bounds merge key expansion through self-referencing anchors.
const maxMergeDepth = 32

// pairs returns the entries of mapping node m in document order with merge
// keys ("<<") expanded. Merged entries come first, earlier merge sources
// shadow later ones, and explicit keys follow so they override on load.
func pairs(m *yaml.Node) []pair {
	return mergedPairs(m, 0)
}

func mergedPairs(m *yaml.Node, depth int) []pair {
	var merged, explicit []pair
	seen := make(map[string]bool)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, value := m.Content[i], resolve(m.Content[i+1])
		if !isMergeKey(key) {
			explicit = append(explicit, pair{key: key, value: value})
			continue
		}
		if depth >= maxMergeDepth {
			continue
		}

		var sources []*yaml.Node
		switch value.Kind {
		case yaml.MappingNode:
			sources = append(sources, value)
		case yaml.SequenceNode:
			for _, item := range value.Content {
				if item = resolve(item); item.Kind == yaml.MappingNode {
					sources = append(sources, item)
				}
			}
		}
		for _, src := range sources {
			for _, p := range mergedPairs(src, depth+1) {
				if seen[p.key.Value] {
					continue
				}
				seen[p.key.Value] = true
				merged = append(merged, p)
			}
		}
	}
	return append(merged, explicit...)
}

func isMergeKey(n *yaml.Node) bool {
	if n.Kind != yaml.ScalarNode {
		return false
	}
	// plain "<<" resolves to !!merge; quoted "<<" is an ordinary string key
	return n.Tag == "!!merge" || (n.Tag == "" && n.Value == "<<" && n.Style == 0)
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty"
	}
}
