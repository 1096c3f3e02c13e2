// Package calibration converts between the board's raw ADC readings and
// capacitor voltage. The conversion is a fitted polynomial in each
// direction; the shipped coefficients were measured against a calibrated
// multimeter on the reference board.
package calibration

import (
	"math"
)

// Polynomial holds coefficients in descending power order, so
// {a, b, c} evaluates a*x^2 + b*x + c.
type Polynomial []float64

// RawToVolts converts a raw 12-bit ADC reading to volts.
var RawToVolts = Polynomial{
	-4.02294398e-11,
	1.53492378e-07,
	-2.71166328e-04,
	7.66927146e-01,
	-1.12729564e00,
}

// VoltsToRaw converts a target voltage to the raw ADC setpoint.
var VoltsToRaw = Polynomial{
	5.59972560e-10,
	-1.02408301e-06,
	1.06453179e-03,
	1.24457162e00,
	2.57379247e00,
}

// Eval evaluates the polynomial at x.
func (p Polynomial) Eval(x float64) float64 {
	var v float64
	for _, c := range p {
		v = v*x + c
	}
	return v
}

// ToVolts converts a raw ADC reading to volts with the shipped curve.
func ToVolts(raw uint16) float64 {
	return RawToVolts.Eval(float64(raw))
}

// ToRaw converts a voltage to the nearest raw ADC value with the shipped
// curve, clamped to the 16-bit wire range.
func ToRaw(volts float64) uint16 {
	raw := math.Round(VoltsToRaw.Eval(volts))
	if raw < 0 {
		return 0
	}
	if raw > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(raw)
}

// Fit computes the least-squares polynomial of the given degree through
// the sample points, returned in the same descending power order, for
// re-deriving the conversion curves from a fresh capture.
func Fit(xs, ys []float64, degree int) (Polynomial, error) {
	if len(xs) != len(ys) {
		return nil, errSampleMismatch
	}
	n := degree + 1
	if len(xs) < n {
		return nil, errTooFewSamples
	}

	// Normal equations: (VᵀV)c = Vᵀy with V the Vandermonde matrix.
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n+1)
	}
	for k := range xs {
		powers := make([]float64, 2*n-1)
		powers[0] = 1
		for i := 1; i < len(powers); i++ {
			powers[i] = powers[i-1] * xs[k]
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a[i][j] += powers[i+j]
			}
			a[i][n] += powers[i] * ys[k]
		}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if a[pivot][col] == 0 {
			return nil, errSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			for j := col; j <= n; j++ {
				a[row][j] -= f * a[col][j]
			}
		}
	}

	coeffs := make(Polynomial, n)
	for i := n - 1; i >= 0; i-- {
		v := a[i][n]
		for j := i + 1; j < n; j++ {
			v -= a[i][j] * coeffs[n-1-j]
		}
		coeffs[n-1-i] = v / a[i][i]
	}
	return coeffs, nil
}
