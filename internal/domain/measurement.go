package domain

import "github.com/vitalpoint/vitalpoint-backend/internal/bodymetrics"

// Measurement is the wire shape of a calculator request. Absent fields decode
// to nil and are treated as not supplied.
type Measurement struct {
	Weight *float64 `json:"weight"`
	Height *float64 `json:"height"`
	Age    *float64 `json:"age"`
	Sex    *string  `json:"sex"`
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// BMI returns nil when the index can't be computed.
func (m Measurement) BMI() *float64 {
	bmi, ok := bodymetrics.BMI(deref(m.Weight), deref(m.Height))
	if !ok {
		return nil
	}
	return &bmi
}

// BMR returns nil when the rate can't be computed.
func (m Measurement) BMR() *float64 {
	var sex bodymetrics.Sex
	if m.Sex != nil {
		sex = bodymetrics.Sex(*m.Sex)
	}

	bmr, ok := bodymetrics.BMR(deref(m.Weight), deref(m.Height), deref(m.Age), sex)
	if !ok {
		return nil
	}
	return &bmr
}
