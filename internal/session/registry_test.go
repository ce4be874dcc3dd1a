package session

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devshell/internal/shared/id"
	"github.com/GriffinCanCode/devshell/internal/shell"
	"github.com/GriffinCanCode/devshell/internal/shell/manager"
	"github.com/GriffinCanCode/devshell/internal/shell/mock"
)

func newShell() *manager.Manager {
	sh := mock.New(mock.DispatchFunc(func(context.Context, string, []string, string) <-chan string {
		return shell.Closed()
	}))
	return manager.New(sh, nil)
}

func TestOpenListClose(t *testing.T) {
	r := NewRegistry(id.NewGenerator(), nil, nil)

	closed := 0
	a := r.Open(newShell(), "10.0.0.1:5000", func() { closed++ })
	b := r.Open(newShell(), "10.0.0.2:5000", nil)

	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	infos := r.List()
	require.Len(t, infos, 2)
	assert.Equal(t, string(a.ID), infos[0].ID)
	assert.Equal(t, string(b.ID), infos[1].ID)
	assert.Equal(t, "mock", infos[0].Mode)
	assert.Equal(t, "/home/guest", infos[0].Cwd)
	assert.False(t, infos[0].SandboxReady)

	require.NoError(t, r.Close(a.ID))
	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, r.Close(a.ID), ErrNotFound)
	assert.Equal(t, 1, closed)

	_, ok = r.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(id.NewGenerator(), nil, nil)
	for i := 0; i < 3; i++ {
		r.Open(newShell(), "", nil)
	}

	r.CloseAll()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.List())
}

func TestRegistryUsesInjectedIDs(t *testing.T) {
	gen := id.NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 64)), nil)
	r := NewRegistry(gen, nil, nil)

	s := r.Open(newShell(), "", nil)
	_, err := id.ParseSessionID(string(s.ID))
	assert.NoError(t, err)
}
