package trajectory

import (
	"testing"

	"go.viam.com/test"
)

func TestSingerConvergesToWNOJAsRateVanishes(t *testing.T) {
	dt, qc := 0.1, 2.0
	wnoj := covarianceWNOJ(dt, qc)
	singer := covarianceSinger(dt, 1e-12, qc)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, singer[i][j], test.ShouldAlmostEqual, wnoj[i][j], 1e-6)
		}
	}
}

func TestTransitionIdentityAtZeroDt(t *testing.T) {
	p := transitionWNOJ(0)
	test.That(t, p, test.ShouldResemble, identity3())
	s := transitionSinger(0, 0.5)
	test.That(t, s[0][0], test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, s[1][1], test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, s[2][2], test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestInvert3RoundTrip(t *testing.T) {
	m := covarianceWNOJ(0.05, 1.5)
	inv := invert3(m)
	prod := m.mul(inv)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, prod[i][j], test.ShouldAlmostEqual, want, 1e-6)
		}
	}
}
