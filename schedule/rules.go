package schedule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/optiline/prodsched/catalog"
)

// LineRule is a line-specific scheduling rule. The set of implementations is
// closed; the constraint engine matches them exhaustively. Rules are
// validated against the catalog when added to a Builder, before any model
// building starts.
type LineRule interface {
	validate(cat *catalog.Catalog) error
	isLineRule()
}

// StartProduct forces the product into the first position of the week.
type StartProduct struct{ Product string }

// StartEndProduct forces the product into both the first and the last
// position of the week.
type StartEndProduct struct{ Product string }

// LastProduct forces the product into the last position of the week.
type LastProduct struct{ Product string }

// ProductSequence imposes a relative order: no product in Order may directly
// precede one that appears earlier in the list.
type ProductSequence struct{ Order []string }

// ProductBlocks is one step of a BlockSequence: the product and how many
// consecutive slots it occupies.
type ProductBlocks struct {
	Product string
	Count   int
}

// BlockSequence lays the products out as consecutive slot blocks in the
// given order, starting at the first slot of the week.
type BlockSequence struct{ Blocks []ProductBlocks }

// ForbiddenCombination forbids each pair from running back to back in that
// order within a slot.
type ForbiddenCombination struct{ Pairs [][2]string }

// NoRule is an explicit "no restriction" marker for a line.
type NoRule struct{}

func (StartProduct) isLineRule()         {}
func (StartEndProduct) isLineRule()      {}
func (LastProduct) isLineRule()          {}
func (ProductSequence) isLineRule()      {}
func (BlockSequence) isLineRule()        {}
func (ForbiddenCombination) isLineRule() {}
func (NoRule) isLineRule()               {}

func knownProduct(cat *catalog.Catalog, code string) error {
	if !cat.HasProduct(code) {
		return fmt.Errorf("unknown product code %q", code)
	}
	return nil
}

func (r StartProduct) validate(cat *catalog.Catalog) error {
	return knownProduct(cat, r.Product)
}

func (r StartEndProduct) validate(cat *catalog.Catalog) error {
	return knownProduct(cat, r.Product)
}

func (r LastProduct) validate(cat *catalog.Catalog) error {
	return knownProduct(cat, r.Product)
}

func (r ProductSequence) validate(cat *catalog.Catalog) error {
	if len(r.Order) < 2 {
		return fmt.Errorf("product sequence needs at least two products, got %d", len(r.Order))
	}
	for _, p := range r.Order {
		if err := knownProduct(cat, p); err != nil {
			return err
		}
	}
	return nil
}

func (r BlockSequence) validate(cat *catalog.Catalog) error {
	if len(r.Blocks) == 0 {
		return fmt.Errorf("block sequence is empty")
	}
	for _, b := range r.Blocks {
		if err := knownProduct(cat, b.Product); err != nil {
			return err
		}
		if b.Count <= 0 {
			return fmt.Errorf("block count for product %q must be positive, got %d", b.Product, b.Count)
		}
	}
	return nil
}

func (r ForbiddenCombination) validate(cat *catalog.Catalog) error {
	if len(r.Pairs) == 0 {
		return fmt.Errorf("forbidden combination has no pairs")
	}
	for _, pair := range r.Pairs {
		if err := knownProduct(cat, pair[0]); err != nil {
			return err
		}
		if err := knownProduct(cat, pair[1]); err != nil {
			return err
		}
	}
	return nil
}

func (NoRule) validate(*catalog.Catalog) error { return nil }

// Rule type tags used by the YAML rule files.
const (
	tagStartProduct         = "start_product"
	tagStartEndProduct      = "start_end_product"
	tagLastProduct          = "last_product"
	tagProductSequence      = "product_sequence"
	tagBlockSequence        = "block_sequence"
	tagForbiddenCombination = "forbidden_combination"
	tagNoConstraint         = "no_constraint"
)

type ruleFile struct {
	Lines map[string][]ruleEntry `yaml:"lines"`
}

type ruleEntry struct {
	Type     string   `yaml:"type"`
	Product  string   `yaml:"product"`
	Sequence []string `yaml:"sequence"`
	Blocks   []struct {
		Product string `yaml:"product"`
		Count   int    `yaml:"count"`
	} `yaml:"blocks"`
	Pairs [][]string `yaml:"pairs"`
}

// LoadRules reads per-line scheduling rules from a YAML file. Catalog
// validation happens later, when the rules are added to a Builder.
func LoadRules(path string) (map[string][]LineRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules parses per-line scheduling rules from YAML bytes.
func ParseRules(data []byte) (map[string][]LineRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	rules := make(map[string][]LineRule, len(f.Lines))
	for line, entries := range f.Lines {
		for _, e := range entries {
			r, err := e.toRule()
			if err != nil {
				return nil, fmt.Errorf("line %s: %w", line, err)
			}
			rules[line] = append(rules[line], r)
		}
	}
	return rules, nil
}

func (e ruleEntry) toRule() (LineRule, error) {
	switch e.Type {
	case tagStartProduct:
		return StartProduct{Product: e.Product}, nil
	case tagStartEndProduct:
		return StartEndProduct{Product: e.Product}, nil
	case tagLastProduct:
		return LastProduct{Product: e.Product}, nil
	case tagProductSequence:
		return ProductSequence{Order: e.Sequence}, nil
	case tagBlockSequence:
		blocks := make([]ProductBlocks, 0, len(e.Blocks))
		for _, b := range e.Blocks {
			blocks = append(blocks, ProductBlocks{Product: b.Product, Count: b.Count})
		}
		return BlockSequence{Blocks: blocks}, nil
	case tagForbiddenCombination:
		pairs := make([][2]string, 0, len(e.Pairs))
		for _, p := range e.Pairs {
			if len(p) != 2 {
				return nil, fmt.Errorf("forbidden pair must have exactly two products, got %v", p)
			}
			pairs = append(pairs, [2]string{p[0], p[1]})
		}
		return ForbiddenCombination{Pairs: pairs}, nil
	case tagNoConstraint:
		return NoRule{}, nil
	}
	return nil, fmt.Errorf("unknown rule type %q", e.Type)
}
