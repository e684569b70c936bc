package protocol

import "math"

// FixedScale is the number of wire units per unit of a fractional value.
// Percentages travel as milli-percent and -1..1 axes as thousandths.
const FixedScale = 1000

// ToFixed rounds v to the nearest milli-unit
func ToFixed(v float64) int32 {
	return int32(math.Round(v * FixedScale))
}

// FromFixed converts milli-units back to a float
func FromFixed(v int32) float64 {
	return float64(v) / FixedScale
}

// EncodeFixed writes v as a signed milli-unit VLQ
func EncodeFixed(output OutputBuffer, v float64) {
	EncodeVLQInt(output, ToFixed(v))
}

// DecodeFixed reads a signed milli-unit VLQ
func DecodeFixed(data *[]byte) (float64, error) {
	v, err := DecodeVLQInt(data)
	if err != nil {
		return 0, err
	}
	return FromFixed(v), nil
}
