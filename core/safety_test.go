package core

import "testing"

type recordingIndicators struct {
	hazard, safe bool
	sets         int
}

func (r *recordingIndicators) SetIndicator(which Indicator, on bool) {
	r.sets++
	switch which {
	case IndicatorHazard:
		r.hazard = on
	case IndicatorSafe:
		r.safe = on
	}
}

func TestSupervisorDangerCondition(t *testing.T) {
	cases := []struct {
		name        string
		measurement uint16
		hvOn        bool
		want        bool
	}{
		{"at threshold", 67, false, true},
		{"below threshold", 66, false, false},
		{"zero", 0, false, false},
		{"high voltage overrides low measurement", 0, true, true},
		{"both", 4095, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ind := &recordingIndicators{}
			s := NewSupervisor(ind)
			got := s.Update(tc.measurement, tc.hvOn)
			if got != tc.want {
				t.Fatalf("danger = %v, want %v", got, tc.want)
			}
			if ind.hazard != tc.want || ind.safe != !tc.want {
				t.Errorf("indicators hazard=%v safe=%v, want %v/%v",
					ind.hazard, ind.safe, tc.want, !tc.want)
			}
		})
	}
}
