package routing

// Rule is one row of the arbitration table. Apply reports whether the rule
// fires and, if so, the final intent.
type Rule struct {
	Name  string
	Apply func(a LLMSignal, b Intent) (Intent, bool)
}

// Rule names, reported with every analysis.
const (
	RuleWeatherCategory     = "weather_category"
	RulePlaceCorrection     = "place_correction"
	RuleDistanceCategory    = "distance_category"
	RuleCityUpgradeChitchat = "city_upgrades_chitchat"
	RuleVectorPassthrough   = "vector_passthrough"
)

// DefaultRules is the ordered arbitration table. Order is significant: the
// first rule that fires decides, and the weather category always wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: RuleWeatherCategory,
			Apply: func(a LLMSignal, _ Intent) (Intent, bool) {
				return IntentAskWeather, a.Category == CategoryWeather
			},
		},
		{
			// Weather-sounding words inside place names fool the vector signal.
			Name: RulePlaceCorrection,
			Apply: func(a LLMSignal, b Intent) (Intent, bool) {
				return IntentAskPlaces, b == IntentAskWeather && a.Category == CategoryPlace
			},
		},
		{
			Name: RuleDistanceCategory,
			Apply: func(a LLMSignal, _ Intent) (Intent, bool) {
				return IntentAskDistance, a.Category == CategoryDistance
			},
		},
		{
			Name: RuleCityUpgradeChitchat,
			Apply: func(a LLMSignal, b Intent) (Intent, bool) {
				return IntentAskDetails, b == IntentChitchat && a.HasCity()
			},
		},
		{
			Name: RuleVectorPassthrough,
			Apply: func(_ LLMSignal, b Intent) (Intent, bool) {
				return b, true
			},
		},
	}
}

// Arbitrate evaluates rules top to bottom and returns the first decision.
// If no rule fires, Signal B passes through.
func Arbitrate(rules []Rule, a LLMSignal, b Intent) (Intent, string) {
	for _, r := range rules {
		if intent, ok := r.Apply(a, b); ok {
			return intent, r.Name
		}
	}
	return b, RuleVectorPassthrough
}
