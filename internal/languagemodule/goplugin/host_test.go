// SPDX-License-Identifier: Apache-2.0

package goplugin

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/plugforge/internal/descriptor"
)

func TestPackedToGo_RoundTripsPrimitives(t *testing.T) {
	v, err := packedToGo(reflect.TypeOf(int32(0)), 41)
	require.NoError(t, err)
	assert.EqualValues(t, 41, v.Int())

	v, err = packedToGo(reflect.TypeOf(true), 1)
	require.NoError(t, err)
	assert.True(t, v.Bool())

	v, err = packedToGo(reflect.TypeOf(uint64(0)), 12345)
	require.NoError(t, err)
	assert.EqualValues(t, 12345, v.Uint())
}

func TestPackedToGo_UnsupportedKind(t *testing.T) {
	_, err := packedToGo(reflect.TypeOf("string"), 0)
	require.Error(t, err)
}

func TestGoToPacked_RoundTripsPrimitives(t *testing.T) {
	packed, err := goToPacked(reflect.ValueOf(int32(42)))
	require.NoError(t, err)
	assert.EqualValues(t, 42, packed)

	packed, err = goToPacked(reflect.ValueOf(false))
	require.NoError(t, err)
	assert.EqualValues(t, 0, packed)
}

func TestGoToPacked_UnsupportedKind(t *testing.T) {
	_, err := goToPacked(reflect.ValueOf("string"))
	require.Error(t, err)
}

func TestFloatRoundTrip(t *testing.T) {
	packed, err := goToPacked(reflect.ValueOf(float64(3.5)))
	require.NoError(t, err)

	v, err := packedToGo(reflect.TypeOf(float64(0)), packed)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, v.Float(), 0.0001)
}

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
