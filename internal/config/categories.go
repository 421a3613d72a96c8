package config

// CategoryWeights orders the help sections; unknown categories sort last.
var CategoryWeights = map[string]int{
	"🍋 General": 0,
	"🎵 Music":   10,
	"🔎 Lookup":  20,
}

// CategoryWeight returns the help position of category.
func CategoryWeight(category string) int {
	if w, ok := CategoryWeights[category]; ok {
		return w
	}
	return 100
}
