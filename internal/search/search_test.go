package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"anoncreds/pkg/helpers"
)

func TestRegistryOpenFetchExhaust(t *testing.T) {
	reg := NewRegistry[int]()
	handle, total := reg.Open([]int{1, 2, 3})
	require.Equal(t, 3, total)

	batch, err := reg.Fetch(handle, 2)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, batch)

	batch, err = reg.Fetch(handle, 2)
	require.NoError(t, err)
	require.Equal(t, []int{3}, batch)

	// Now exhausted: further fetches return an empty batch, no error.
	batch, err = reg.Fetch(handle, 2)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestRegistryCloseInvalidatesHandle(t *testing.T) {
	reg := NewRegistry[int]()
	handle, _ := reg.Open([]int{1, 2})

	require.NoError(t, reg.Close(handle))

	_, err := reg.Fetch(handle, 1)
	require.ErrorIs(t, err, helpers.ErrInvalidHandle)

	err = reg.Close(handle)
	require.ErrorIs(t, err, helpers.ErrInvalidHandle)
}

func TestRegistryUnknownHandleFails(t *testing.T) {
	reg := NewRegistry[int]()
	_, err := reg.Fetch(999, 1)
	require.ErrorIs(t, err, helpers.ErrInvalidHandle)

	err = reg.Close(999)
	require.ErrorIs(t, err, helpers.ErrInvalidHandle)
}

func TestRegistryHandlesAreDenseAndUnique(t *testing.T) {
	reg := NewRegistry[int]()
	h1, _ := reg.Open([]int{1})
	h2, _ := reg.Open([]int{2})
	require.NotEqual(t, h1, h2)
	require.Equal(t, h1+1, h2)
}
