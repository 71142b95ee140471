package instrument

import "strings"

// Preset is a named frequency span selectable by the operator.
type Preset struct {
	Name     string
	StartKHz int64
	EndKHz   int64
}

// Presets lists the channel shortcuts for the 5.8 GHz video band, ordered
// for display and hotkey selection.
var Presets = []Preset{
	{Name: "Kanal 4", StartKHz: 5_500_000, EndKHz: 5_700_000},
	{Name: "Kanal 8", StartKHz: 5_600_000, EndKHz: 5_800_000},
	{Name: "Kanal 4+8", StartKHz: 5_450_000, EndKHz: 5_850_000},
	{Name: "Full Band", StartKHz: 5_100_000, EndKHz: 5_900_000},
}

// PresetByName looks up a preset case-insensitively.
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}
