package indicators

// Config holds indicator periods.
type Config struct {
	SMAFast      int
	SMASlow      int
	EMAFast      int
	EMASlow      int
	RSIPeriod    int
	MACDSignal   int
	BBPeriod     int
	BBStdDev     float64
	StochK       int
	StochD       int
	WilliamsR    int
	VolumePeriod int
	ROCPeriod    int
}

// DefaultConfig returns the standard parameterisation.
func DefaultConfig() Config {
	return Config{
		SMAFast:      20,
		SMASlow:      50,
		EMAFast:      12,
		EMASlow:      26,
		RSIPeriod:    14,
		MACDSignal:   9,
		BBPeriod:     20,
		BBStdDev:     2.0,
		StochK:       14,
		StochD:       3,
		WilliamsR:    14,
		VolumePeriod: 20,
		ROCPeriod:    10,
	}
}
