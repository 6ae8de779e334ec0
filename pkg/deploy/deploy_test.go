package deploy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeployErrorWrapsAndUnwraps(t *testing.T) {
	inner := errors.New("connection refused")
	err := deployErrorf("compose", "discover-validators", inner)

	var de *DeployError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "compose", de.Backend)
	assert.Equal(t, "discover-validators", de.Op)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "compose")
	assert.Contains(t, err.Error(), "discover-validators")
}

type fakeCapable struct{ requires bool }

func (f fakeCapable) RequiresNodeControl() bool { return f.requires }

func TestRejectUnsupportedNodeControl(t *testing.T) {
	assert.NoError(t, rejectUnsupportedNodeControl("k8s", fakeCapable{requires: false}))

	err := rejectUnsupportedNodeControl("k8s", fakeCapable{requires: true})
	assert.Error(t, err)
	var de *DeployError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "k8s", de.Backend)
}
