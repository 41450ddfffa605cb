package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFile mirrors the on-disk catalog layout.
type yamlFile struct {
	Products []struct {
		Code        string             `yaml:"code"`
		Name        string             `yaml:"name"`
		ItemsPerBox int                `yaml:"items_per_box"`
		Category    string             `yaml:"category"`
		HeightMM    float64            `yaml:"height_mm"`
		Market      string             `yaml:"market"`
		Rates       map[string]float64 `yaml:"rates"`
	} `yaml:"products"`
	Lines []struct {
		ID           string  `yaml:"id"`
		Tracks       int     `yaml:"tracks"`
		SetupHours   float64 `yaml:"setup_hours"`
		CleanupHours float64 `yaml:"cleanup_hours"`
	} `yaml:"lines"`
	TimeSlots []struct {
		Name     string  `yaml:"name"`
		MaxHours float64 `yaml:"max_hours"`
	} `yaml:"time_slots"`
	ChangeoverRules map[string][]struct {
		Type  string  `yaml:"type"`
		From  string  `yaml:"from"`
		To    string  `yaml:"to"`
		Hours float64 `yaml:"hours"`
	} `yaml:"changeover_rules"`
	Orders map[string]float64 `yaml:"orders"`
}

// Load reads and assembles a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse assembles a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	products := make([]Product, 0, len(f.Products))
	for _, p := range f.Products {
		if p.Code == "" {
			return nil, fmt.Errorf("product %q has no code", p.Name)
		}
		products = append(products, Product{
			Code:        p.Code,
			Name:        p.Name,
			ItemsPerBox: p.ItemsPerBox,
			Category:    p.Category,
			HeightMM:    p.HeightMM,
			Market:      p.Market,
			Rates:       p.Rates,
		})
	}

	lines := make([]Line, 0, len(f.Lines))
	for _, l := range f.Lines {
		if l.ID == "" {
			return nil, fmt.Errorf("line entry has no id")
		}
		lines = append(lines, Line{
			ID:           l.ID,
			Tracks:       l.Tracks,
			SetupHours:   l.SetupHours,
			CleanupHours: l.CleanupHours,
		})
	}

	slots := make([]TimeSlot, 0, len(f.TimeSlots))
	for _, s := range f.TimeSlots {
		if s.Name == "" {
			return nil, fmt.Errorf("time slot entry has no name")
		}
		slots = append(slots, TimeSlot{Name: s.Name, MaxHours: s.MaxHours})
	}

	rules := make(map[string][]ChangeoverRule, len(f.ChangeoverRules))
	for line, rs := range f.ChangeoverRules {
		for _, r := range rs {
			t := RuleType(r.Type)
			switch t {
			case RuleCategory, RuleHeight, RuleMarket:
			default:
				return nil, fmt.Errorf("line %q: unknown changeover rule type %q", line, r.Type)
			}
			if r.Hours < 0 {
				return nil, fmt.Errorf("line %q: negative changeover hours %v", line, r.Hours)
			}
			rules[line] = append(rules[line], ChangeoverRule{
				Type:  t,
				From:  r.From,
				To:    r.To,
				Hours: r.Hours,
			})
		}
	}

	return New(products, lines, slots, rules, f.Orders)
}
