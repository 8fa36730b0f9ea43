package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var unitConverterSpec = Spec{
	Name: string(UnitConverter),
	Description: "Convert a value between units. Length: miles, km, feet, meters, inches, cm. " +
		"Weight: kg, lbs, oz, grams. Temperature: celsius, fahrenheit.",
	Parameters: map[string]Param{
		"value":     {Type: "number", Description: "The numeric value to convert", Required: true},
		"from_unit": {Type: "string", Description: "The source unit (e.g. miles, kg, celsius)", Required: true},
		"to_unit":   {Type: "string", Description: "The target unit (e.g. km, lbs, fahrenheit)", Required: true},
	},
}

type unitPair struct{ from, to string }

var conversionFactors = map[unitPair]float64{
	// Length
	{"miles", "km"}:    1.60934,
	{"km", "miles"}:    0.621371,
	{"feet", "meters"}: 0.3048,
	{"meters", "feet"}: 3.28084,
	{"inches", "cm"}:   2.54,
	{"cm", "inches"}:   0.393701,

	// Weight
	{"kg", "lbs"}:   2.20462,
	{"lbs", "kg"}:   0.453592,
	{"oz", "grams"}: 28.3495,
	{"grams", "oz"}: 0.035274,
}

type unitArgs struct {
	Value    *float64 `json:"value"`
	FromUnit string   `json:"from_unit"`
	ToUnit   string   `json:"to_unit"`
}

func (a *unitArgs) validate() error {
	if a.Value == nil {
		return errors.New("value is required")
	}
	a.FromUnit = strings.ToLower(strings.TrimSpace(a.FromUnit))
	a.ToUnit = strings.ToLower(strings.TrimSpace(a.ToUnit))
	if a.FromUnit == "" || a.ToUnit == "" {
		return errors.New("from_unit and to_unit are required")
	}
	return nil
}

func convertUnits(_ context.Context, args unitArgs) (string, error) {
	return Convert(*args.Value, args.FromUnit, args.ToUnit), nil
}

// Convert converts value between units. Unit names are case-insensitive.
// Unsupported pairs are reported in the returned text.
func Convert(value float64, from, to string) string {
	from = strings.ToLower(from)
	to = strings.ToLower(to)
	v := strconv.FormatFloat(value, 'f', -1, 64)

	switch {
	case from == "celsius" && to == "fahrenheit":
		return fmt.Sprintf("%s °C = %.2f °F", v, value*9/5+32)
	case from == "fahrenheit" && to == "celsius":
		return fmt.Sprintf("%s °F = %.2f °C", v, (value-32)*5/9)
	}

	factor, ok := conversionFactors[unitPair{from, to}]
	if !ok {
		return fmt.Sprintf("Conversion from %s to %s is not supported", from, to)
	}
	return fmt.Sprintf("%s %s = %.2f %s", v, from, value*factor, to)
}
