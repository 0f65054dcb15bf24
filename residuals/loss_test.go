package residuals

import (
	"testing"

	"go.viam.com/test"
)

func TestL2LossAlwaysUnitWeight(t *testing.T) {
	test.That(t, L2Loss{}.Weight(100, 1), test.ShouldEqual, 1.0)
}

func TestRobustLossesDownweightLargeResiduals(t *testing.T) {
	losses := []Loss{DCSLoss{}, CauchyLoss{}, GemanMcClureLoss{}}
	for _, l := range losses {
		small := l.Weight(0.01, 1.0)
		large := l.Weight(1000, 1.0)
		test.That(t, large, test.ShouldBeLessThan, small)
	}
}

func TestResolveLossMapsKinds(t *testing.T) {
	_, ok := ResolveLoss(LossDCS).(DCSLoss)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = ResolveLoss(LossCauchy).(CauchyLoss)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = ResolveLoss(LossGemanMcClure).(GemanMcClureLoss)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = ResolveLoss(LossL2).(L2Loss)
	test.That(t, ok, test.ShouldBeTrue)
}
