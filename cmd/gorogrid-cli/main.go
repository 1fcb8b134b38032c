// gorogrid-cli runs the consumption prediction pipeline once from a terminal.
//
// Usage:
//
//	gorogrid-cli features --datetime 2025-06-15T14:30 --z1_temp 22.5 ...
//	gorogrid-cli predict --datetime 2025-06-15T14:30 --z1_temp 22.5 ... --tariff 0.25
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/common"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/metrics"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "gorogrid-cli",
		Usage:     "Estimate household energy consumption from zone sensor readings",
		Version:   common.Version(),
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "timezone",
				Usage:   "IANA timezone the datetime is entered in (default: local)",
				EnvVars: []string{"GOROGRID_TIMEZONE"},
			},
		},
		Commands: []*cli.Command{
			featuresCommand(),
			predictCommand(),
		},
	}
}

// sensorFlags has one required flag per form field.
func sensorFlags() []cli.Flag {
	fields := types.SensorFields()
	flags := make([]cli.Flag, 0, len(fields))
	for _, f := range fields {
		flags = append(flags, &cli.StringFlag{
			Name:     string(f),
			Usage:    fmt.Sprintf("value of the %s field", f),
			Required: true,
		})
	}
	return flags
}

func featuresCommand() *cli.Command {
	return &cli.Command{
		Name:   "features",
		Usage:  "Print the JSON request body sent to the prediction service",
		Flags:  sensorFlags(),
		Action: runFeatures,
	}
}

func predictCommand() *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Call the prediction service and print consumption, CO2 and cost",
		Flags: append(sensorFlags(),
			&cli.StringFlag{
				Name:    "url",
				Value:   prediction.DefaultURL,
				Usage:   "URL of the consumption prediction endpoint",
				EnvVars: []string{"GOROGRID_PREDICTION_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "Timeout for the prediction request (0 means none)",
			},
			&cli.Float64Flag{
				Name:  "tariff",
				Value: types.DefaultTariffPerKWH,
				Usage: "Tariff per kWh",
			},
			&cli.Float64Flag{
				Name:  "co2-factor",
				Value: types.DefaultCO2Factor,
				Usage: "kg CO2 per kWh",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		),
		Action: runPredict,
	}
}

// buildFeatures reads the sensor flags and turns them into a FeatureVector.
func buildFeatures(c *cli.Context) (types.FeatureVector, error) {
	var loc *time.Location
	if tz := c.String("timezone"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return types.FeatureVector{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}

	var reading types.SensorReading
	for _, f := range types.SensorFields() {
		if err := reading.Set(f, c.String(string(f))); err != nil {
			return types.FeatureVector{}, err
		}
	}
	return features.NewBuilder(loc).Build(reading)
}

func runFeatures(c *cli.Context) error {
	fv, err := buildFeatures(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(prediction.Request{Features: fv})
}

func runPredict(c *cli.Context) error {
	prefs := types.Preferences{
		TariffPerKWH: c.Float64("tariff"),
		CO2Factor:    c.Float64("co2-factor"),
	}
	if err := prefs.Validate(); err != nil {
		return err
	}

	fv, err := buildFeatures(c)
	if err != nil {
		return err
	}

	client := prediction.NewClient(c.String("url"), common.HTTPClient(c.Duration("timeout")))
	if err := client.Validate(); err != nil {
		return err
	}

	consumption, err := client.Predict(context.Background(), fv)
	if err != nil {
		return err
	}

	display := metrics.Derive(float64(consumption), prefs).Display()
	if c.Bool("json") {
		return json.NewEncoder(c.App.Writer).Encode(display)
	}
	fmt.Fprintf(c.App.Writer, "Consumption: %s kWh\n", display.Consumption)
	fmt.Fprintf(c.App.Writer, "CO2:         %s kg\n", display.CO2Kg)
	fmt.Fprintf(c.App.Writer, "Cost:        %s %s\n", display.Currency, display.Cost)
	return nil
}
