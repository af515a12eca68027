package device

// ABV estimates alcohol by volume from the current and original gravity.
func ABV(gravity, originalGravity float64) float64 {
	return Round((originalGravity-gravity)*131.25, 2)
}

// Attenuation is the percentage of fermentable sugar consumed so far.
func Attenuation(gravity, originalGravity float64) float64 {
	if originalGravity <= 1 {
		return 0
	}

	return Round(100*(originalGravity-gravity)/(originalGravity-1), 2)
}
