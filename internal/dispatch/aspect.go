package dispatch

// DefaultAspectRatio is used for empty and unrecognized labels.
const DefaultAspectRatio = "1:1"

// Dimensions is an explicit pixel size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// aspectTable is part of the external contract: callers may rely on exactly
// these labels producing these sizes.
var aspectTable = map[string]Dimensions{
	"1:1":  {Width: 1024, Height: 1024},
	"16:9": {Width: 1152, Height: 648},
	"9:16": {Width: 648, Height: 1152},
	"4:3":  {Width: 1024, Height: 768},
	"3:4":  {Width: 768, Height: 1024},
}

// AspectRatios lists the accepted labels in a stable order.
func AspectRatios() []string {
	return []string{"1:1", "16:9", "9:16", "4:3", "3:4"}
}

// ResolveAspect maps a label to its dimensions. Unknown labels fall back to
// 1:1; the returned label is the one actually applied.
func ResolveAspect(label string) (string, Dimensions) {
	if d, ok := aspectTable[label]; ok {
		return label, d
	}
	return DefaultAspectRatio, aspectTable[DefaultAspectRatio]
}
