package matcher

// MatchThreshold is the minimum unrounded confidence for a true match.
// Two passing checks score 0.666..., which falls short; all three checks
// must pass.
const MatchThreshold = 0.67

// Config holds matcher tolerances.
type Config struct {
	AmountToleranceAbs   float64 // Absolute floor in currency units (default: 1.00)
	AmountToleranceRatio float64 // Fraction of the bill amount (default: 0.02)
	DateWindowDays       int     // Days either side of the due date (default: 7)
	NameSimilarity       float64 // Minimum fuzzy similarity in [0,1] (default: 0.8)
}

// DefaultConfig returns the calibrated defaults.
//
// The amount tolerance is the larger of a $1.00 floor and 2% of the bill,
// so a $75.99 bill still matches a $75.49 charge while a $500 bill allows
// up to $10 of drift.
func DefaultConfig() Config {
	return Config{
		AmountToleranceAbs:   1.00,
		AmountToleranceRatio: 0.02,
		DateWindowDays:       7,
		NameSimilarity:       0.8,
	}
}

// Result reports the outcome for one transaction/bill pair.
// Score is the fraction of the three checks that passed, rounded to two
// decimals. IsMatch requires the unrounded fraction to clear
// MatchThreshold.
type Result struct {
	Score    float64 `json:"score"`
	IsMatch  bool    `json:"is_match"`
	NameOK   bool    `json:"name_ok"`
	AmountOK bool    `json:"amount_ok"`
	DateOK   bool    `json:"date_ok"`
}
