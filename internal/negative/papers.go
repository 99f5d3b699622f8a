package negative

// PaperProfile describes a printing paper: base tint and how much the
// blacks deepen on it.
type PaperProfile struct {
	Name      string
	Tint      [3]float64 // RGB multiplier target of the paper base
	DMaxBoost float64    // extra density pulled into the blacks
}

// Paper profile names.
const (
	PaperNone       = "None"
	PaperWarmFiber  = "Warm Fiber"
	PaperCoolFiber  = "Cool Fiber"
	PaperIvoryMatte = "Ivory Matte"
)

// PaperProfiles maps profile names to their parameters. Lookups of unknown
// names fall back to PaperNone.
var PaperProfiles = map[string]PaperProfile{
	PaperNone: {
		Name: PaperNone,
		Tint: [3]float64{1, 1, 1},
	},
	PaperWarmFiber: {
		Name:      PaperWarmFiber,
		Tint:      [3]float64{1.0, 0.985, 0.955},
		DMaxBoost: 0.06,
	},
	PaperCoolFiber: {
		Name:      PaperCoolFiber,
		Tint:      [3]float64{0.975, 0.99, 1.0},
		DMaxBoost: 0.08,
	},
	PaperIvoryMatte: {
		Name:      PaperIvoryMatte,
		Tint:      [3]float64{1.0, 0.995, 0.97},
		DMaxBoost: 0.0,
	},
}

// LookupPaper resolves a profile name, falling back to neutral paper.
func LookupPaper(name string) PaperProfile {
	if p, ok := PaperProfiles[name]; ok {
		return p
	}
	return PaperProfiles[PaperNone]
}
