package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
)

type bmiResponse struct {
	BMI *float64 `json:"bmi"`
}

type bmrResponse struct {
	BMR *float64 `json:"bmr"`
}

func (a *api) decodeMeasurement(w http.ResponseWriter, r *http.Request) (domain.Measurement, bool) {
	var m domain.Measurement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		a.logger.Info("failed to parse request json", zap.Error(err))
		a.errorResponse(w, r, http.StatusUnprocessableEntity, codeInvalidJSON, err.Error())
		return m, false
	}
	return m, true
}

func (a *api) bmiHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.decodeMeasurement(w, r)
	if !ok {
		return
	}

	res := bmiResponse{BMI: m.BMI()}
	_ = a.statsd.Incr("metrics.calculated", []string{"metric:bmi", computedTag(res.BMI)}, 1)
	a.jsonResponse(w, http.StatusOK, res)
}

func (a *api) bmrHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := a.decodeMeasurement(w, r)
	if !ok {
		return
	}

	res := bmrResponse{BMR: m.BMR()}
	_ = a.statsd.Incr("metrics.calculated", []string{"metric:bmr", computedTag(res.BMR)}, 1)
	a.jsonResponse(w, http.StatusOK, res)
}

func computedTag(v *float64) string {
	if v == nil {
		return "computed:false"
	}
	return "computed:true"
}
