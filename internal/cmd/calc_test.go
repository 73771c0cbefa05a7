package cmd_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalpoint/vitalpoint-backend/internal/cmd"
)

func TestCalcCmd(t *testing.T) {
	t.Parallel()

	tt := map[string]struct {
		args []string
		want string
	}{
		"bmi":                {[]string{"calc", "bmi", "--weight", "81", "--height", "180"}, "BMI: 25.00\n"},
		"bmi missing height": {[]string{"calc", "bmi", "--weight", "81"}, "BMI: undefined\n"},
		"bmr male":           {[]string{"calc", "bmr", "--weight", "100", "--height", "200", "--age", "50", "--sex", "male"}, "BMR: 2,104.01 kcal/day\n"},
		"bmr other":          {[]string{"calc", "bmr", "--weight", "100", "--height", "200", "--age", "50", "--sex", "female"}, "BMR: 1,775.39 kcal/day\n"},
		"bmr missing sex":    {[]string{"calc", "bmr", "--weight", "100", "--height", "200", "--age", "50"}, "BMR: undefined\n"},
	}

	for scenario, tc := range tt {
		tc := tc

		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer

			root := cmd.NewRootCmd(context.Background())
			root.SetOut(&out)
			root.SetArgs(tc.args)

			require.NoError(t, root.Execute())
			assert.Equal(t, tc.want, out.String())
		})
	}
}
