package dealership

import (
	"fmt"
	"strconv"
	"strings"
)

// QuotationPrompt builds the sales-quotation prompt text. discountPct is
// a string argument; values that fail to parse or fall outside [0, 30]
// clamp to 0 rather than erroring, so a sloppy model call still yields a
// usable prompt.
func (s *Store) QuotationPrompt(carID, customerName, discountPct string) string {
	pct := 0.0
	if n, err := strconv.ParseFloat(discountPct, 64); err == nil && n >= 0 && n <= 30 {
		pct = n
	}

	lines := []string{
		fmt.Sprintf("Please draft a concise, friendly email to customer %q.", customerName),
	}

	car, err := s.FindCar(carID)
	if err != nil {
		lines = append(lines,
			"Car: UNKNOWN.",
			"Pricing: unknown due to missing car.")
	} else {
		desc := fmt.Sprintf("Car: %d %s %s", car.Year, car.Make, car.Model)
		if car.Trim != "" {
			desc += " " + car.Trim
		}
		desc += fmt.Sprintf(" (%s).", car.Engine)
		final := int(roundHalfAway(float64(car.BasePrice) * (1 - pct/100)))
		lines = append(lines, desc,
			fmt.Sprintf("Pricing: base €%d, discount %g%%, final €%d.", car.BasePrice, pct, final))
	}

	lines = append(lines,
		"Include a short call to action and dealership contact details.",
		"Keep it under 120 words.")

	return strings.Join(lines, "\n")
}
