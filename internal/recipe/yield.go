package recipe

import (
	"fmt"
	"math"
	"strconv"

	"github.com/starford/prepcost/internal/models"
	"github.com/starford/prepcost/internal/units"
)

// Mode selects how a yield violation is enforced.
type Mode string

// Enforcement modes.
const (
	ModeBlock  Mode = "block"
	ModeNotify Mode = "notify"
	ModePermit Mode = "permit"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeBlock, ModeNotify, ModePermit:
		return true
	}
	return false
}

// Verdict is the result of comparing declared output against input mass.
type Verdict string

// Verdicts.
const (
	VerdictPass      Verdict = "pass"
	VerdictViolation Verdict = "violation"
	VerdictUnchecked Verdict = "unchecked"
)

// Action is what the caller must do with an Outcome under its mode.
type Action string

// Actions.
const (
	ActionProceed Action = "proceed"
	ActionBlock   Action = "block"
	ActionConfirm Action = "confirm"
)

// Outcome describes one item's yield check.
type Outcome struct {
	ItemRef      string  `json:"item_ref"`
	ItemName     string  `json:"item_name"`
	Verdict      Verdict `json:"verdict"`
	Mode         Mode    `json:"mode,omitempty"`
	OutputGrams  float64 `json:"output_grams"`
	InputGrams   float64 `json:"input_grams"`
	PerUnitGrams float64 `json:"per_unit_grams,omitempty"`

	// ImplicitPerUnit is set when the per-unit weight was derived from the
	// ingredient total rather than declared.
	ImplicitPerUnit bool `json:"implicit_per_unit,omitempty"`
}

// Violated reports whether output exceeds input.
func (o Outcome) Violated() bool {
	return o.Verdict == VerdictViolation
}

// Action maps the verdict through the enforcement mode.
func (o Outcome) Action() Action {
	if !o.Violated() {
		return ActionProceed
	}
	switch o.Mode {
	case ModeBlock:
		return ActionBlock
	case ModeNotify:
		return ActionConfirm
	default:
		return ActionProceed
	}
}

// Message is a user-facing description of a violation.
func (o Outcome) Message() string {
	name := o.ItemName
	if name == "" {
		name = "Unnamed item"
	}
	switch o.Verdict {
	case VerdictUnchecked:
		return fmt.Sprintf("%s: yield could not be checked", name)
	case VerdictPass:
		return fmt.Sprintf("%s: yield of %s fits within %s of ingredients", name, grams(o.OutputGrams), grams(o.InputGrams))
	}
	return fmt.Sprintf("%s: yield of %s exceeds %s of ingredients", name, grams(o.OutputGrams), grams(o.InputGrams))
}

func grams(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " g"
}

// ValidateYield checks that item's declared yield does not weigh more than
// totalGrams of ingredients. Items without a yield, raw items and yields in
// an unknown unit come back unchecked.
func ValidateYield(item models.Item, totalGrams float64) Outcome {
	out := Outcome{
		ItemRef:    item.Ref(),
		ItemName:   item.Name,
		Verdict:    VerdictUnchecked,
		InputGrams: totalGrams,
	}
	if item.Kind != models.KindPrepped || item.YieldAmount == nil || *item.YieldAmount <= 0 {
		return out
	}
	amount := *item.YieldAmount

	switch units.Classify(item.YieldUnit) {
	case units.Count:
		perUnit, declared := item.PerUnitGrams()
		if !declared {
			// Fill the declared count from whatever mass is there.
			perUnit = totalGrams / amount
			out.ImplicitPerUnit = true
		}
		out.PerUnitGrams = perUnit
		out.OutputGrams = perUnit * amount
	case units.Mass:
		g, _ := units.MassGrams(item.YieldUnit)
		out.OutputGrams = amount * g
	default:
		return out
	}

	if exceeds(out.OutputGrams, totalGrams) {
		out.Verdict = VerdictViolation
	} else {
		out.Verdict = VerdictPass
	}
	return out
}

// ValidateItem totals item's lines and checks its yield under mode.
func (n *Normalizer) ValidateItem(item models.Item, mode Mode) Outcome {
	out := ValidateYield(item, n.TotalGrams(item.Lines))
	out.Mode = mode
	return out
}

// exceeds compares with a relative tolerance so sums like 600+400 that land a
// hair off in floating point still match a 1000 g yield.
func exceeds(output, input float64) bool {
	tol := 1e-9 * math.Max(1, math.Abs(input))
	return output > input+tol
}
