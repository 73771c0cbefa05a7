// Package bodymetrics computes body mass index and basal metabolic rate from
// a handful of physiological inputs.
//
// Every function is pure. A zero or NaN input means "not supplied" and makes
// the result not computable, which is reported through the second (ok) return
// value rather than an error. Out-of-range values such as negative weights are
// not rejected; they are computed as-is.
package bodymetrics

import "math"

// Sex selects the BMR equation. Only the exact value Male gets the male
// coefficients; every other non-empty value, including unrecognised or
// differently cased spellings, uses the other set.
type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

// Harris-Benedict coefficients, revised by Roza and Shizgal.
const (
	maleBase   = 88.362
	maleWeight = 13.397
	maleHeight = 4.799
	maleAge    = 5.677

	otherBase   = 447.593
	otherWeight = 9.247
	otherHeight = 3.098
	otherAge    = 4.330
)

func supplied(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

// BMI returns weightKg / (heightCm/100)². The value is not rounded.
func BMI(weightKg, heightCm float64) (float64, bool) {
	if !supplied(weightKg) || !supplied(heightCm) {
		return 0, false
	}

	m := heightCm / 100
	return weightKg / (m * m), true
}

// BMR returns the estimated resting energy expenditure in kcal/day.
func BMR(weightKg, heightCm, ageYears float64, sex Sex) (float64, bool) {
	if !supplied(weightKg) || !supplied(heightCm) || !supplied(ageYears) || sex == "" {
		return 0, false
	}

	if sex == Male {
		return maleBase + maleWeight*weightKg + maleHeight*heightCm - maleAge*ageYears, true
	}
	return otherBase + otherWeight*weightKg + otherHeight*heightCm - otherAge*ageYears, true
}
