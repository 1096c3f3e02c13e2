package core

// DangerThreshold is the raw measurement at or above which the output is
// considered dangerous to touch regardless of the enable state.
const DangerThreshold uint16 = 67

// Supervisor computes the danger condition and drives the status
// indicators. It runs every loop iteration, independent of protocol
// traffic, so the visual safety state never goes stale while the host is
// quiet.
type Supervisor struct {
	Threshold  uint16
	Indicators IndicatorDriver
}

// NewSupervisor returns a supervisor with the default threshold.
func NewSupervisor(indicators IndicatorDriver) *Supervisor {
	return &Supervisor{Threshold: DangerThreshold, Indicators: indicators}
}

// Update recomputes the danger condition for the latest measurement and
// high-voltage enable state and sets both indicators. It returns the
// condition for the caller's benefit.
func (s *Supervisor) Update(measurement uint16, highVoltageOn bool) bool {
	danger := measurement >= s.Threshold || highVoltageOn
	s.Indicators.SetIndicator(IndicatorHazard, danger)
	s.Indicators.SetIndicator(IndicatorSafe, !danger)
	return danger
}
