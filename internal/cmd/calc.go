package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vitalpoint/vitalpoint-backend/internal/bodymetrics"
)

const undefinedResult = "undefined"

func printMetric(w io.Writer, label, unit string, v float64, ok bool) {
	if !ok {
		fmt.Fprintf(w, "%s: %s\n", label, undefinedResult)
		return
	}

	fmt.Fprintf(w, "%s: %s%s\n", label, humanize.FormatFloat("#,###.##", v), unit)
}

func CalcCmd() *cobra.Command {
	var weight, height, age float64
	var sex string

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Computes body metrics from the command line.",
	}

	bmi := &cobra.Command{
		Use:   "bmi",
		Args:  cobra.ExactArgs(0),
		Short: "Body mass index from weight (kg) and height (cm).",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := bodymetrics.BMI(weight, height)
			printMetric(cmd.OutOrStdout(), "BMI", "", v, ok)
			return nil
		},
	}

	bmr := &cobra.Command{
		Use:   "bmr",
		Args:  cobra.ExactArgs(0),
		Short: "Basal metabolic rate (Harris-Benedict) in kcal/day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := bodymetrics.BMR(weight, height, age, bodymetrics.Sex(sex))
			printMetric(cmd.OutOrStdout(), "BMR", " kcal/day", v, ok)
			return nil
		},
	}

	cmd.PersistentFlags().Float64Var(&weight, "weight", 0, "Weight in kilograms")
	cmd.PersistentFlags().Float64Var(&height, "height", 0, "Height in centimetres")
	bmr.Flags().Float64Var(&age, "age", 0, "Age in years")
	bmr.Flags().StringVar(&sex, "sex", "", `"male" or anything else`)

	cmd.AddCommand(bmi, bmr)

	return cmd
}
