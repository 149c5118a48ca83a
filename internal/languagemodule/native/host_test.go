// SPDX-License-Identifier: Apache-2.0

package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plugforge/plugforge/internal/descriptor"
)

func TestHost_ClosedRejectsLoad(t *testing.T) {
	h := NewHost()
	ctx := context.Background()
	require.NoError(t, h.Shutdown(ctx))

	d := &descriptor.PluginDescriptor{EntryPoint: "x.so"}
	d.SetName("x")

	err := h.OnLoadPlugin(ctx, d, "/tmp")
	require.Error(t, err)
}

func TestHost_EndUnloadedPluginFails(t *testing.T) {
	h := NewHost()
	err := h.OnEndPlugin(context.Background(), "never-loaded")
	require.Error(t, err)
}

func TestHost_CallOnUnloadedPluginFails(t *testing.T) {
	h := NewHost()
	method := descriptor.Method{Name: "F", FuncName: "F", VarIndex: descriptor.NoVarIndex}
	_, err := h.CallExportedMethod(context.Background(), "never-loaded", method, nil)
	require.Error(t, err)
}

func TestHost_LoadMissingLibraryFails(t *testing.T) {
	h := NewHost()
	ctx := context.Background()

	d := &descriptor.PluginDescriptor{EntryPoint: "does-not-exist.so"}
	d.SetName("missing")

	err := h.OnLoadPlugin(ctx, d, t.TempDir())
	require.Error(t, err)
}

func TestHost_StartAndInitializeAreNoOps(t *testing.T) {
	h := NewHost()
	ctx := context.Background()
	require.NoError(t, h.Initialize(ctx))
	require.NoError(t, h.OnStartPlugin(ctx, "whatever"))
}
