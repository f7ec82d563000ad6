package domain

import (
	"strconv"
	"strings"
)

// ──────────────────────────────────────────────────────────────────────────────
// Canonical categories
// ──────────────────────────────────────────────────────────────────────────────

// Category names a wager family in its canonical form.
type Category string

const (
	CategoryPositionNumber   Category = "position_number"
	CategoryPositionTwoSided Category = "position_two_sided"
	CategoryTopTwoSum        Category = "top_two_sum"
	CategoryDragonTiger      Category = "dragon_tiger"
)

// Side is a canonical two-sided or dragon/tiger choice.
type Side string

const (
	SideBig    Side = "big"
	SideSmall  Side = "small"
	SideOdd    Side = "odd"
	SideEven   Side = "even"
	SideDragon Side = "dragon"
	SideTiger  Side = "tiger"
)

// SumExact marks an exact-value top-two-sum wager.
const SumExact Side = "exact"

// Board thresholds.
const (
	PositionBigFrom = 6  // a position value ≥ 6 is "big"
	SumBigFrom      = 12 // a top-two sum ≥ 12 is "big"
	SumMin          = 3
	SumMax          = 19
	DragonTigerMax  = PositionCount / 2
)

// Selection is the closed set of decoded wager choices. Only the types in
// this file implement it.
type Selection interface {
	Category() Category
	isSelection()
}

// PositionNumber wins when Number is drawn at Position.
type PositionNumber struct {
	Position int
	Number   int
}

// PositionTwoSided wins when the value at Position is on Side
// (big/small/odd/even).
type PositionTwoSided struct {
	Position int
	Side     Side
}

// TopTwoSum covers the sum of positions 1 and 2. Variant is big/small/odd/
// even or SumExact, in which case Value holds the target sum.
type TopTwoSum struct {
	Variant Side
	Value   int
}

// DragonTiger compares position First with position 11-First.
type DragonTiger struct {
	First int
	Side  Side
}

// Second returns the opposing position of the pair.
func (d DragonTiger) Second() int { return PositionCount + 1 - d.First }

func (PositionNumber) Category() Category   { return CategoryPositionNumber }
func (PositionTwoSided) Category() Category { return CategoryPositionTwoSided }
func (TopTwoSum) Category() Category        { return CategoryTopTwoSum }
func (DragonTiger) Category() Category      { return CategoryDragonTiger }

func (PositionNumber) isSelection()   {}
func (PositionTwoSided) isSelection() {}
func (TopTwoSum) isSelection()        {}
func (DragonTiger) isSelection()      {}

// ──────────────────────────────────────────────────────────────────────────────
// Strict decoding (settlement side)
// ──────────────────────────────────────────────────────────────────────────────

// DecodeSelection decodes the canonical persisted form. Numeric values are
// normalised to integers so "07", " 7" and "7" compare equal; labels must
// already be canonical. An unknown category returns ErrUnrecognizedCategory
// wrapped in a ValidationError.
func DecodeSelection(category Category, position int, selector string) (Selection, error) {
	sel := strings.TrimSpace(selector)
	switch category {
	case CategoryPositionNumber:
		if err := checkPosition(position, PositionCount); err != nil {
			return nil, err
		}
		n, err := normalizeInt(sel)
		if err != nil || n < 1 || n > PositionCount {
			return nil, &ValidationError{Field: "selector", Value: selector, Reason: "number must be 1-10"}
		}
		return PositionNumber{Position: position, Number: n}, nil

	case CategoryPositionTwoSided:
		if err := checkPosition(position, PositionCount); err != nil {
			return nil, err
		}
		side := Side(sel)
		switch side {
		case SideBig, SideSmall, SideOdd, SideEven:
			return PositionTwoSided{Position: position, Side: side}, nil
		}
		return nil, &ValidationError{Field: "selector", Value: selector, Reason: "side must be big, small, odd or even"}

	case CategoryTopTwoSum:
		switch side := Side(sel); side {
		case SideBig, SideSmall, SideOdd, SideEven:
			return TopTwoSum{Variant: side}, nil
		}
		n, err := normalizeInt(sel)
		if err != nil || n < SumMin || n > SumMax {
			return nil, &ValidationError{Field: "selector", Value: selector, Reason: "sum must be big, small, odd, even or 3-19"}
		}
		return TopTwoSum{Variant: SumExact, Value: n}, nil

	case CategoryDragonTiger:
		if err := checkPosition(position, DragonTigerMax); err != nil {
			return nil, err
		}
		side := Side(sel)
		if side != SideDragon && side != SideTiger {
			return nil, &ValidationError{Field: "selector", Value: selector, Reason: "side must be dragon or tiger"}
		}
		return DragonTiger{First: position, Side: side}, nil
	}
	return nil, &ValidationError{Field: "category", Value: string(category), Reason: ErrUnrecognizedCategory.Error()}
}

// Encode returns the canonical (category, position, selector) triple.
func Encode(s Selection) (Category, int, string) {
	switch v := s.(type) {
	case PositionNumber:
		return CategoryPositionNumber, v.Position, strconv.Itoa(v.Number)
	case PositionTwoSided:
		return CategoryPositionTwoSided, v.Position, string(v.Side)
	case TopTwoSum:
		if v.Variant == SumExact {
			return CategoryTopTwoSum, 0, strconv.Itoa(v.Value)
		}
		return CategoryTopTwoSum, 0, string(v.Variant)
	case DragonTiger:
		return CategoryDragonTiger, v.First, string(v.Side)
	}
	return "", 0, ""
}

func checkPosition(position, max int) error {
	if position < 1 || position > max {
		return &ValidationError{Field: "position", Value: strconv.Itoa(position), Reason: "out of range"}
	}
	return nil
}

// normalizeInt accepts integer text with surrounding space, leading zeros or
// an integral decimal form ("7.0").
func normalizeInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
