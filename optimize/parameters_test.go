package optimize

import (
	"math/rand/v2"
	"testing"
)

func TestParameterValues(tst *testing.T) {
	var pars FloatParameters
	a, b := 1.0, 2.0
	pars.Append(NewBasicFloatParameter(&a, "a"))
	pars.Append(NewBoundedFloatParameter(&b, "b", 0, 3))

	if s := pars.NamesString(); s != "a\tb" {
		tst.Errorf("Incorrect names: %q", s)
	}
	if s := pars.ValuesString(); s != "1.000000\t2.000000" {
		tst.Errorf("Incorrect values: %q", s)
	}
	if err := pars.SetValues([]float64{5, 4}); err != nil {
		tst.Fatal("Error: ", err)
	}
	if a != 5 || b != 4 {
		tst.Errorf("Values not set: a=%v, b=%v", a, b)
	}
	if pars.InRange() {
		tst.Error("b=4 should be out of range")
	}
	if pars.ValuesInRange([]float64{-100, 3}) != true {
		tst.Error("Expected values in range")
	}
	if err := pars.SetValues([]float64{1}); err == nil {
		tst.Error("Expected an error for a wrong number of values")
	}
}

func TestRandomize(tst *testing.T) {
	var pars FloatParameters
	a, b := 0.0, 0.0
	pars.Append(NewBoundedFloatParameter(&a, "a", 0.5, 0.6))
	pars.Append(NewBasicFloatParameter(&b, "b"))
	pars.Randomize(rand.New(rand.NewPCG(1, 1)))
	if !pars.InRange() {
		tst.Error("Randomized parameters out of range")
	}
	if a < 0.5 || a > 0.6 || b < MIN || b > MAX {
		tst.Errorf("Incorrect random values: a=%v, b=%v", a, b)
	}

	a1, b1 := a, b
	pars.Randomize(rand.New(rand.NewPCG(1, 1)))
	if a != a1 || b != b1 {
		tst.Error("Same seed gave different values")
	}
}
