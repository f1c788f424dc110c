package utility

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type unitKind int

const (
	kindTemperature unitKind = iota
	kindMass
	kindLength
	kindVolume
)

type unit struct {
	kind   unitKind
	symbol string
	// factor converts to the kind's base unit (kg, m, l); unused for
	// temperature, which needs linear formulas.
	factor float64
}

var unitTable = map[string]unit{
	"f": {kindTemperature, "°F", 0}, "fahrenheit": {kindTemperature, "°F", 0},
	"c": {kindTemperature, "°C", 0}, "celsius": {kindTemperature, "°C", 0},
	"k": {kindTemperature, "K", 0}, "kelvin": {kindTemperature, "K", 0},

	"kg": {kindMass, "kg", 1}, "kilogram": {kindMass, "kg", 1}, "kilograms": {kindMass, "kg", 1},
	"g": {kindMass, "g", 0.001}, "gram": {kindMass, "g", 0.001}, "grams": {kindMass, "g", 0.001},
	"lb": {kindMass, "lb", 0.453592}, "lbs": {kindMass, "lb", 0.453592},
	"pound": {kindMass, "lb", 0.453592}, "pounds": {kindMass, "lb", 0.453592},
	"oz": {kindMass, "oz", 0.0283495}, "ounce": {kindMass, "oz", 0.0283495}, "ounces": {kindMass, "oz", 0.0283495},

	"km": {kindLength, "km", 1000}, "kilometer": {kindLength, "km", 1000}, "kilometers": {kindLength, "km", 1000},
	"m": {kindLength, "m", 1}, "meter": {kindLength, "m", 1}, "meters": {kindLength, "m", 1},
	"cm": {kindLength, "cm", 0.01}, "centimeter": {kindLength, "cm", 0.01}, "centimeters": {kindLength, "cm", 0.01},
	"mm":   {kindLength, "mm", 0.001},
	"mi":   {kindLength, "mi", 1609.34},
	"mile": {kindLength, "mi", 1609.34}, "miles": {kindLength, "mi", 1609.34},
	"ft": {kindLength, "ft", 0.3048}, "foot": {kindLength, "ft", 0.3048}, "feet": {kindLength, "ft", 0.3048},
	"in": {kindLength, "in", 0.0254}, "inch": {kindLength, "in", 0.0254}, "inches": {kindLength, "in", 0.0254},

	"l": {kindVolume, "l", 1}, "liter": {kindVolume, "l", 1}, "liters": {kindVolume, "l", 1}, "litre": {kindVolume, "l", 1}, "litres": {kindVolume, "l", 1},
	"ml": {kindVolume, "ml", 0.001}, "milliliter": {kindVolume, "ml", 0.001}, "milliliters": {kindVolume, "ml", 0.001},
	"gal": {kindVolume, "gal", 3.78541}, "gallon": {kindVolume, "gal", 3.78541}, "gallons": {kindVolume, "gal", 3.78541},
	"cup": {kindVolume, "cup", 0.24}, "cups": {kindVolume, "cup", 0.24},
}

func unitFor(token string) (unit, bool) {
	u, ok := unitTable[strings.ToLower(strings.TrimSpace(token))]
	return u, ok
}

// convert performs a unit conversion between two named units of the same
// kind, formatting the result to two decimals with the target symbol.
func convert(valueStr, fromTok, toTok string) (string, bool) {
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return "", false
	}
	from, ok := unitFor(fromTok)
	if !ok {
		return "", false
	}
	to, ok := unitFor(toTok)
	if !ok {
		return "", false
	}
	if from.kind != to.kind || from.symbol == to.symbol {
		return "", false
	}

	var out float64
	if from.kind == kindTemperature {
		out, ok = convertTemperature(value, from.symbol, to.symbol)
		if !ok {
			return "", false
		}
	} else {
		out = value * from.factor / to.factor
	}
	return fmt.Sprintf("%s%s", strconv.FormatFloat(math.Round(out*100)/100, 'f', 2, 64), to.symbol), true
}

func convertTemperature(v float64, from, to string) (float64, bool) {
	// Normalize through Celsius.
	var c float64
	switch from {
	case "°C":
		c = v
	case "°F":
		c = (v - 32) * 5 / 9
	case "K":
		c = v - 273.15
	default:
		return 0, false
	}
	switch to {
	case "°C":
		return c, true
	case "°F":
		return c*9/5 + 32, true
	case "K":
		return c + 273.15, true
	default:
		return 0, false
	}
}
