// Package catalog holds the factory master data the scheduler consumes: the
// product/line/time-slot catalog, per-line changeover rules, and the weekly
// order book.
//
// Lookups that may miss return an explicit (value, ok) pair instead of a
// baked-in default. The scheduling engine owns the fallback policy and
// records every fallback it applies, so data-quality gaps stay visible.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors reported while assembling or mutating a catalog.
var (
	ErrNoLines     = errors.New("catalog has no lines")
	ErrNoTimeSlots = errors.New("catalog has no time slots")
	ErrUnknownSlot = errors.New("unknown time slot")
)

// RuleType selects the product attribute a changeover rule compares.
type RuleType string

const (
	// RuleCategory compares product categories (e.g. cup vs. pouch).
	RuleCategory RuleType = "category"
	// RuleHeight compares container heights in millimeters.
	RuleHeight RuleType = "height"
	// RuleMarket compares target markets (e.g. domestic vs. export).
	RuleMarket RuleType = "market"
)

// Product is one SKU the factory can produce.
type Product struct {
	Code        string
	Name        string
	ItemsPerBox int
	Category    string
	HeightMM    float64
	Market      string
	// Rates maps line ID to throughput in units per minute. A missing or
	// zero entry means the product cannot run on that line.
	Rates map[string]float64
}

// Line is one production line.
type Line struct {
	ID           string
	Tracks       int
	SetupHours   float64
	CleanupHours float64
}

// TimeSlot is one (day, shift) working window. Slots are totally ordered by
// their position in the catalog.
type TimeSlot struct {
	Name     string
	MaxHours float64
}

// ChangeoverRule describes the time cost of switching between two product
// groups on a line. From and To are matched against the attribute selected
// by Type; a rule with empty From and To matches any pair of products that
// share the attribute value.
type ChangeoverRule struct {
	Type  RuleType
	From  string
	To    string
	Hours float64
}

// Catalog is the assembled master data set. It is immutable except for
// SetMaxHours, which supports per-week working-hours overrides.
type Catalog struct {
	products     map[string]*Product
	productOrder []string
	lines        map[string]*Line
	lineOrder    []string
	slots        []TimeSlot
	rules        map[string][]ChangeoverRule
	orders       map[string]float64
}

// New assembles a catalog and validates its shape. Orders may reference only
// known products; quantities are in boxes.
func New(products []Product, lines []Line, slots []TimeSlot, rules map[string][]ChangeoverRule, orders map[string]float64) (*Catalog, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if len(slots) == 0 {
		return nil, ErrNoTimeSlots
	}
	c := &Catalog{
		products: make(map[string]*Product, len(products)),
		lines:    make(map[string]*Line, len(lines)),
		slots:    append([]TimeSlot(nil), slots...),
		rules:    make(map[string][]ChangeoverRule, len(rules)),
		orders:   make(map[string]float64, len(orders)),
	}
	for i := range products {
		p := products[i]
		if _, ok := c.products[p.Code]; ok {
			return nil, fmt.Errorf("duplicate product code %q", p.Code)
		}
		c.products[p.Code] = &p
		c.productOrder = append(c.productOrder, p.Code)
	}
	for i := range lines {
		l := lines[i]
		if _, ok := c.lines[l.ID]; ok {
			return nil, fmt.Errorf("duplicate line ID %q", l.ID)
		}
		c.lines[l.ID] = &l
		c.lineOrder = append(c.lineOrder, l.ID)
	}
	for line, rs := range rules {
		if _, ok := c.lines[line]; !ok {
			return nil, fmt.Errorf("changeover rules reference unknown line %q", line)
		}
		c.rules[line] = append([]ChangeoverRule(nil), rs...)
	}
	for code, qty := range orders {
		if _, ok := c.products[code]; !ok {
			return nil, fmt.Errorf("order references unknown product %q", code)
		}
		c.orders[code] = qty
	}
	return c, nil
}

// Products returns product codes in catalog order.
func (c *Catalog) Products() []string {
	return append([]string(nil), c.productOrder...)
}

// Lines returns line IDs in catalog order.
func (c *Catalog) Lines() []string {
	return append([]string(nil), c.lineOrder...)
}

// TimeSlots returns the ordered working windows of the week.
func (c *Catalog) TimeSlots() []TimeSlot {
	return append([]TimeSlot(nil), c.slots...)
}

// HasProduct reports whether the product code is known.
func (c *Catalog) HasProduct(code string) bool {
	_, ok := c.products[code]
	return ok
}

// HasLine reports whether the line ID is known.
func (c *Catalog) HasLine(id string) bool {
	_, ok := c.lines[id]
	return ok
}

// ProductName returns the display name of a product, or the code itself when
// the product is unknown or unnamed.
func (c *Catalog) ProductName(code string) string {
	if p, ok := c.products[code]; ok && p.Name != "" {
		return p.Name
	}
	return code
}

// ThroughputRate returns the units-per-minute rate of a product on a line.
// Zero means the combination is invalid.
func (c *Catalog) ThroughputRate(product, line string) float64 {
	p, ok := c.products[product]
	if !ok {
		return 0
	}
	return p.Rates[line]
}

// TrackCount returns the number of parallel tracks of a line.
func (c *Catalog) TrackCount(line string) (int, bool) {
	l, ok := c.lines[line]
	if !ok || l.Tracks <= 0 {
		return 0, false
	}
	return l.Tracks, true
}

// ItemsPerBox returns how many units fill one box of the product.
func (c *Catalog) ItemsPerBox(product string) (int, bool) {
	p, ok := c.products[product]
	if !ok || p.ItemsPerBox <= 0 {
		return 0, false
	}
	return p.ItemsPerBox, true
}

// SetupHours returns the start-of-week setup time of a line.
func (c *Catalog) SetupHours(line string) (float64, bool) {
	l, ok := c.lines[line]
	if !ok || l.SetupHours < 0 {
		return 0, false
	}
	return l.SetupHours, true
}

// CleanupHours returns the end-of-week cleanup time of a line.
func (c *Catalog) CleanupHours(line string) (float64, bool) {
	l, ok := c.lines[line]
	if !ok || l.CleanupHours < 0 {
		return 0, false
	}
	return l.CleanupHours, true
}

// OrderQuantity returns the target box quantity for a product. Products
// without an order have a zero target.
func (c *Catalog) OrderQuantity(product string) float64 {
	return c.orders[product]
}

// SetMaxHours overrides the working hours of one time slot by name.
func (c *Catalog) SetMaxHours(slot string, hours float64) error {
	if hours < 0 {
		return fmt.Errorf("negative working hours %v for slot %q", hours, slot)
	}
	for i := range c.slots {
		if c.slots[i].Name == slot {
			c.slots[i].MaxHours = hours
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
}

// ChangeoverHours returns the changeover time from one product to another on
// a line, by matching the line's rules in order. The second result is false
// when no rule matches; the caller decides the fallback.
func (c *Catalog) ChangeoverHours(from, to, line string) (float64, bool) {
	fp, ok := c.products[from]
	if !ok {
		return 0, false
	}
	tp, ok := c.products[to]
	if !ok {
		return 0, false
	}
	for _, r := range c.rules[line] {
		fa, fok := attribute(fp, r.Type)
		ta, tok := attribute(tp, r.Type)
		if !fok || !tok {
			continue
		}
		if r.From == "" && r.To == "" {
			if fa == ta {
				return r.Hours, true
			}
			continue
		}
		if r.From == fa && r.To == ta {
			return r.Hours, true
		}
	}
	return 0, false
}

// attribute extracts the product attribute a rule type compares.
func attribute(p *Product, t RuleType) (string, bool) {
	switch t {
	case RuleCategory:
		return p.Category, p.Category != ""
	case RuleHeight:
		if p.HeightMM <= 0 {
			return "", false
		}
		return strconv.FormatFloat(p.HeightMM, 'f', -1, 64), true
	case RuleMarket:
		return p.Market, p.Market != ""
	}
	return "", false
}
