package globals

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CQCL/guppy-go/internal/gtypes"
)

// TestCacheRoundTrip confirms SaveCache/LoadCache preserves dispatch tables,
// including the linear bound on Qubit, which gob would silently drop without
// gtypes.Type's custom GobEncode/GobDecode.
func TestCacheRoundTrip(t *testing.T) {
	r := Prelude()
	path := filepath.Join(t.TempDir(), "globals.cache")
	require.NoError(t, SaveCache(path, r))

	loaded, err := LoadCache(path)
	require.NoError(t, err)

	sig, ok := loaded.Dispatch(gtypes.Numeric(gtypes.Int), "__add__")
	require.True(t, ok)
	require.Equal(t, gtypes.Numeric(gtypes.Int), sig.Outputs[0])

	measure, ok := loaded.Lookup("measure")
	require.True(t, ok)
	require.True(t, measure.FuncInputs[0].Linear(), "qubit's Any bound must survive the round trip")
	require.Equal(t, gtypes.BoundAny, measure.FuncInputs[0].Bound())

	require.Panics(t, func() {
		loaded.Define("x", gtypes.Bool())
	}, "a loaded cache is always frozen")
}
