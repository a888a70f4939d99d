package fruit

import (
	"strings"
	"unicode"
)

var knownNames = map[string]string{
	"apple":         "Apple",
	"apples":        "Apple",
	"apricot":       "Apricot",
	"banana":        "Banana",
	"bananas":       "Banana",
	"blackberry":    "Blackberry",
	"blackberries":  "Blackberry",
	"blueberry":     "Blueberry",
	"blueberries":   "Blueberry",
	"cantaloupe":    "Cantaloupe",
	"cherry":        "Cherry",
	"cherries":      "Cherry",
	"cranberry":     "Cranberry",
	"dragon fruit":  "Dragon Fruit",
	"fig":           "Fig",
	"figs":          "Fig",
	"grape":         "Grape",
	"grapes":        "Grape",
	"grapefruit":    "Grapefruit",
	"kiwi":          "Kiwi",
	"kiwis":         "Kiwi",
	"lemon":         "Lemon",
	"lemons":        "Lemon",
	"lime":          "Lime",
	"limes":         "Lime",
	"lychee":        "Lychee",
	"mango":         "Mango",
	"mangos":        "Mango",
	"mangoes":       "Mango",
	"melon":         "Melon",
	"nectarine":     "Nectarine",
	"orange":        "Orange",
	"oranges":       "Orange",
	"papaya":        "Papaya",
	"passion fruit": "Passion Fruit",
	"peach":         "Peach",
	"peaches":       "Peach",
	"pear":          "Pear",
	"pears":         "Pear",
	"pineapple":     "Pineapple",
	"pineapples":    "Pineapple",
	"plum":          "Plum",
	"pomegranate":   "Pomegranate",
	"raspberry":     "Raspberry",
	"raspberries":   "Raspberry",
	"strawberry":    "Strawberry",
	"strawberries":  "Strawberry",
	"tangerine":     "Tangerine",
	"watermelon":    "Watermelon",
}

// Normalize returns the canonical display name for a fruit. Known names
// and their plurals map to a singular form; anything else is title-cased.
func Normalize(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "Unknown"
	}
	if canonical, ok := knownNames[lower]; ok {
		return canonical
	}
	return titleCase(lower)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
