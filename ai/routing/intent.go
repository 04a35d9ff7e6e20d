// Package routing classifies concierge utterances into a closed intent set by
// combining an LLM extraction signal with a vector similarity signal.
package routing

import "strings"

// Intent is a final classification label.
type Intent string

const (
	IntentAskWeather    Intent = "ask_weather"
	IntentAskDistance   Intent = "ask_distance"
	IntentAskHotels     Intent = "ask_hotels"
	IntentAskPromotions Intent = "ask_promotions"
	IntentAskDishes     Intent = "ask_dishes"
	IntentAskPlaces     Intent = "ask_places"
	IntentChitchat      Intent = "chitchat"
	IntentAskDetails    Intent = "ask_details"
)

// AllIntents lists the closed intent set.
var AllIntents = []Intent{
	IntentAskWeather,
	IntentAskDistance,
	IntentAskHotels,
	IntentAskPromotions,
	IntentAskDishes,
	IntentAskPlaces,
	IntentChitchat,
	IntentAskDetails,
}

// ParseIntent maps a stored intent code to an Intent.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, i := range AllIntents {
		if string(i) == s {
			return i, true
		}
	}
	return IntentAskDetails, false
}

// Category is the coarse label produced by the LLM extractor.
type Category string

const (
	CategoryWeather  Category = "weather"
	CategoryPlace    Category = "place"
	CategoryDistance Category = "distance"
	CategoryOther    Category = "other"
)

// ParseCategory maps LLM output to a Category.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryWeather:
		return CategoryWeather, true
	case CategoryPlace:
		return CategoryPlace, true
	case CategoryDistance:
		return CategoryDistance, true
	case CategoryOther:
		return CategoryOther, true
	}
	return CategoryOther, false
}
