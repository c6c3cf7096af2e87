package mcpserver

import (
	"strings"

	"github.com/starford/prepcost/internal/units"
)

const unitsURI = "prepcost://units"

// UnitsReference describes how recipe quantities are converted to grams.
func UnitsReference() string {
	var b strings.Builder
	b.WriteString("# Recipe units\n\n")
	b.WriteString("Every ingredient quantity is converted to grams before yields are checked.\n\n")
	b.WriteString("## Mass\n\nAlways convertible: " + strings.Join(units.MassUnits, ", ") + ".\n\n")
	b.WriteString("## Volume\n\n" + strings.Join(units.VolumeUnits, ", ") + ".\n")
	b.WriteString("Only raw items whose base item has a specific weight (g/ml) convert; " +
		"volume on a prepped item counts as zero grams.\n\n")
	b.WriteString("## Count\n\n`" + units.Each + "` uses the item's per-unit weight " +
		"(`each_grams` on raw items, `yield_each_grams` on prepped items yielding each). " +
		"Without one the line counts as zero grams.\n\n")
	b.WriteString("## Yields\n\nPrepped items declare output in " + strings.Join(units.YieldUnits, ", ") + ". ")
	b.WriteString("A yield heavier than its ingredients is a violation, enforced as block, notify or permit.\n")
	return b.String()
}
