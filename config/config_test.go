package config

import (
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfigValidates(t *testing.T) {
	test.That(t, Default().Validate(), test.ShouldBeNil)
}

func TestValidateRejectsMissingExtrinsic(t *testing.T) {
	c := Default()
	c.TSR = nil
	test.That(t, c.Validate(), test.ShouldBeError)
}

func TestValidateRejectsZeroVoxelSize(t *testing.T) {
	c := Default()
	c.VoxelSize = 0
	test.That(t, c.Validate(), test.ShouldBeError)
}

func TestValidateRejectsInconsistentNeighborBounds(t *testing.T) {
	c := Default()
	c.MinNumberNeighbors = 30
	c.MaxNumberNeighbors = 10
	test.That(t, c.Validate(), test.ShouldBeError)
}
