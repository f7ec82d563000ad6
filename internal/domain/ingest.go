package domain

import (
	"strings"
)

// ──────────────────────────────────────────────────────────────────────────────
// Ingestion: free-form labels → canonical Selection
// ──────────────────────────────────────────────────────────────────────────────

// Client front-ends send English and localized labels interchangeably. They
// are folded into the canonical vocabulary here so settlement only ever sees
// Category/Side constants.

var categoryAliases = map[string]Category{
	"position_number":    CategoryPositionNumber,
	"number":             CategoryPositionNumber,
	"single":             CategoryPositionNumber,
	"定位":                 CategoryPositionNumber,
	"号码":                 CategoryPositionNumber,
	"position_two_sided": CategoryPositionTwoSided,
	"two_sided":          CategoryPositionTwoSided,
	"twosided":           CategoryPositionTwoSided,
	"两面":                 CategoryPositionTwoSided,
	"top_two_sum":        CategoryTopTwoSum,
	"sum":                CategoryTopTwoSum,
	"sumvalue":           CategoryTopTwoSum,
	"冠亚和":                CategoryTopTwoSum,
	"dragon_tiger":       CategoryDragonTiger,
	"dragontiger":        CategoryDragonTiger,
	"龙虎":                 CategoryDragonTiger,
}

var sideAliases = map[string]Side{
	"big":    SideBig,
	"大":      SideBig,
	"small":  SideSmall,
	"小":      SideSmall,
	"odd":    SideOdd,
	"单":      SideOdd,
	"單":      SideOdd,
	"even":   SideEven,
	"双":      SideEven,
	"雙":      SideEven,
	"dragon": SideDragon,
	"龙":      SideDragon,
	"龍":      SideDragon,
	"tiger":  SideTiger,
	"虎":      SideTiger,
}

// Position-named categories ("champion", "冠军") carry the position in the
// category itself.
var positionNames = map[string]int{
	"champion": 1, "冠军": 1,
	"runnerup": 2, "runner_up": 2, "亚军": 2,
	"third": 3, "第三名": 3,
	"fourth": 4, "第四名": 4,
	"fifth": 5, "第五名": 5,
	"sixth": 6, "第六名": 6,
	"seventh": 7, "第七名": 7,
	"eighth": 8, "第八名": 8,
	"ninth": 9, "第九名": 9,
	"tenth": 10, "第十名": 10,
}

// RawWager is a wager as received from a client before normalisation.
type RawWager struct {
	Category string
	Position string
	Selector string
}

// ParseSelection folds a raw category/position/selector triple into a
// canonical Selection. Unknown categories return a ValidationError whose
// Reason is ErrUnrecognizedCategory's text.
func ParseSelection(raw RawWager) (Selection, error) {
	cat := foldLabel(raw.Category)
	selector := foldLabel(raw.Selector)
	side, isSide := sideAliases[selector]

	position := 0
	if strings.TrimSpace(raw.Position) != "" {
		p, err := parsePosition(raw.Position)
		if err != nil {
			return nil, err
		}
		position = p
	}

	if p, ok := positionNames[cat]; ok {
		position = p
		if isSide && side != SideDragon && side != SideTiger {
			return DecodeSelection(CategoryPositionTwoSided, position, string(side))
		}
		if isSide {
			return DecodeSelection(CategoryDragonTiger, position, string(side))
		}
		return DecodeSelection(CategoryPositionNumber, position, selector)
	}

	canonical, ok := categoryAliases[cat]
	if !ok {
		return nil, &ValidationError{Field: "category", Value: raw.Category, Reason: ErrUnrecognizedCategory.Error()}
	}
	if isSide {
		selector = string(side)
	}
	return DecodeSelection(canonical, position, selector)
}

// NormalizeWager rewrites w's category/position/selector into canonical form.
func NormalizeWager(w *Wager, raw RawWager) error {
	sel, err := ParseSelection(raw)
	if err != nil {
		return err
	}
	w.Category, w.Position, w.Selector = Encode(sel)
	return nil
}

func foldLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}

// parsePosition accepts a number or a position name.
func parsePosition(s string) (int, error) {
	f := foldLabel(s)
	if p, ok := positionNames[f]; ok {
		return p, nil
	}
	n, err := normalizeInt(f)
	if err != nil {
		return 0, &ValidationError{Field: "position", Value: s, Reason: "not a position"}
	}
	return n, nil
}
