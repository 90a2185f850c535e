package models

// MissingValue is the sentinel station files use for "no reading".
const MissingValue = -9999

// ConvertTemperature converts tenths of a degree Celsius to degrees Celsius.
// The missing-value sentinel yields nil.
func ConvertTemperature(rawTenths int) *float64 {
	if rawTenths == MissingValue {
		return nil
	}
	c := float64(rawTenths) / 10.0
	return &c
}

// ConvertPrecipitation converts tenths of a millimetre to centimetres.
// The missing-value sentinel yields nil.
func ConvertPrecipitation(rawTenths int) *float64 {
	if rawTenths == MissingValue {
		return nil
	}
	mm := float64(rawTenths) / 10.0
	cm := mm / 10.0
	return &cm
}
