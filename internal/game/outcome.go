package game

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	MIN_MULTIPLIER = 1.00
	MAX_MULTIPLIER = 50.00
)

type crashBand struct {
	upTo float64
	min  float64
	max  float64
}

// Contiguous over [0, 1); each band is uniform within [min, max).
var crashBands = []crashBand{
	{upTo: 0.60, min: 1.0, max: 2.0},
	{upTo: 0.85, min: 2.0, max: 4.0},
	{upTo: 0.95, min: 4.0, max: 7.0},
	{upTo: 0.99, min: 7.0, max: 15.0},
	{upTo: 1.00, min: 15.0, max: 50.0},
}

// DrawCrashPoint consumes two draws: one picks the band, one the position in it.
func DrawCrashPoint(src Source) float64 {
	u := src.Float64()
	v := src.Float64()
	return CrashPointFor(u, v)
}

// CrashPointFor maps a band draw u and an in-band draw v, both in [0, 1),
// to a crash multiplier truncated to two decimals.
func CrashPointFor(u, v float64) float64 {
	u = clampUnit(u)
	v = clampUnit(v)

	band := crashBands[len(crashBands)-1]
	for _, b := range crashBands {
		if u < b.upTo {
			band = b
			break
		}
	}

	point := math.Floor((band.min+v*(band.max-band.min))*100) / 100
	if point < band.min {
		point = band.min
	}
	return point
}

func clampUnit(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x >= 1 {
		return math.Nextafter(1, 0)
	}
	return x
}

type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

const (
	Zero       = "0"
	DoubleZero = "00"
)

// Wheel is the American wheel in pocket order.
var Wheel = []string{
	"0", "28", "9", "26", "30", "11", "7", "20", "32", "17", "5", "22", "34", "15", "3", "24", "36", "13", "1",
	"00", "27", "10", "25", "29", "12", "8", "19", "31", "18", "6", "21", "33", "16", "4", "23", "35", "14", "2",
}

var redNumbers = map[string]struct{}{
	"1": {}, "3": {}, "5": {}, "7": {}, "9": {}, "12": {}, "14": {}, "16": {}, "18": {},
	"19": {}, "21": {}, "23": {}, "25": {}, "27": {}, "30": {}, "32": {}, "34": {}, "36": {},
}

var blackNumbers = map[string]struct{}{
	"2": {}, "4": {}, "6": {}, "8": {}, "10": {}, "11": {}, "13": {}, "15": {}, "17": {},
	"20": {}, "22": {}, "24": {}, "26": {}, "28": {}, "29": {}, "31": {}, "33": {}, "35": {},
}

// ColorOf returns "" for a symbol that is not on the wheel.
func ColorOf(symbol string) Color {
	if symbol == Zero || symbol == DoubleZero {
		return Green
	}
	if _, ok := redNumbers[symbol]; ok {
		return Red
	}
	if _, ok := blackNumbers[symbol]; ok {
		return Black
	}
	return ""
}

func DrawRouletteNumber(src Source) string {
	i := int(clampUnit(src.Float64()) * float64(len(Wheel)))
	if i >= len(Wheel) {
		i = len(Wheel) - 1
	}
	return Wheel[i]
}

const (
	COLOR_PAYOUT  = 2
	NUMBER_PAYOUT = 36
)

var ErrInvalidBetType = errors.New("invalid bet type")

// ParseBetType normalizes a roulette wager: "red", "black" or a wheel
// symbol. "0" and "00" stay distinct; "07" is read as "7".
func ParseBetType(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case string(Red), string(Black), DoubleZero:
		return s, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 36 {
		return "", ErrInvalidBetType
	}
	return strconv.Itoa(n), nil
}

// RoulettePayout is the total returned for a bet of betType against the
// drawn symbol, zero on a loss. betType must already be normalized.
func RoulettePayout(betType string, stake int64, symbol string) int64 {
	switch Color(betType) {
	case Red, Black:
		color := ColorOf(symbol)
		if color != Green && color == Color(betType) {
			return stake * COLOR_PAYOUT
		}
		return 0
	}
	if betType == symbol {
		return stake * NUMBER_PAYOUT
	}
	return 0
}
