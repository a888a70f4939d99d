package fruit

import "strings"

// Benefit tags used by the stats summaries.
const (
	BenefitImmunity  = "immunity"
	BenefitEnergy    = "energy"
	BenefitBrain     = "brain"
	BenefitHeart     = "heart"
	BenefitDigestion = "digestion"
	BenefitEyeHealth = "eye_health"
	BenefitHydration = "hydration"
	BenefitRecovery  = "recovery"
	BenefitSleep     = "sleep"
)

// Profile describes the color group and benefits of a fruit.
type Profile struct {
	Key      string
	Color    string
	Benefits []string
}

var profiles = []Profile{
	{"apple", "red", []string{BenefitHeart, BenefitDigestion}},
	{"banana", "yellow", []string{BenefitEnergy, BenefitDigestion}},
	{"orange", "orange", []string{BenefitImmunity}},
	{"blueberry", "blue", []string{BenefitBrain, BenefitHeart}},
	{"blueberries", "blue", []string{BenefitBrain, BenefitHeart}},
	{"strawberry", "red", []string{BenefitImmunity, BenefitHeart}},
	{"strawberries", "red", []string{BenefitImmunity, BenefitHeart}},
	{"grape", "purple", []string{BenefitHeart, BenefitBrain}},
	{"grapes", "purple", []string{BenefitHeart, BenefitBrain}},
	{"kiwi", "green", []string{BenefitImmunity, BenefitDigestion}},
	{"pineapple", "yellow", []string{BenefitImmunity, BenefitDigestion}},
	{"mango", "orange", []string{BenefitImmunity, BenefitEyeHealth}},
	{"watermelon", "red", []string{BenefitHydration, BenefitHeart}},
	{"lemon", "yellow", []string{BenefitImmunity}},
	{"lime", "green", []string{BenefitImmunity}},
	{"pear", "green", []string{BenefitDigestion, BenefitHeart}},
	{"peach", "orange", []string{BenefitDigestion, BenefitImmunity}},
	{"cherry", "red", []string{BenefitRecovery, BenefitSleep}},
	{"avocado", "green", []string{BenefitHeart, BenefitBrain}},
}

// Lookup returns the first profile whose key is contained in name.
func Lookup(name string) (Profile, bool) {
	lower := strings.ToLower(name)
	for _, p := range profiles {
		if strings.Contains(lower, p.Key) {
			return p, true
		}
	}
	return Profile{}, false
}
