// SPDX-License-Identifier: Apache-2.0

package pkgmanager

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/pkgmanager/downloader"
)

func buildGreeterZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("greeter.module")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"fileVersion":1,"version":2,"language":"greeter"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNewScheduler(t *testing.T) {
	in := NewInstaller(t.TempDir(), descriptor.Platform("linux-amd64"), downloader.NewPool(), nil)
	s := NewScheduler(in, []string{"https://example.invalid/repo.json"}, nil)

	assert.Same(t, in, s.Installer)
	assert.Equal(t, []string{"https://example.invalid/repo.json"}, s.Repositories)
	assert.NotNil(t, s.Logger)
}

func TestScheduler_StartRejectsInvalidCronSpec(t *testing.T) {
	in := NewInstaller(t.TempDir(), descriptor.Platform("linux-amd64"), downloader.NewPool(), nil)
	s := NewScheduler(in, nil, nil)

	err := s.Start("not a cron spec")
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	in := NewInstaller(t.TempDir(), descriptor.Platform("linux-amd64"), downloader.NewPool(), nil)
	s := NewScheduler(in, nil, nil)

	require.NoError(t, s.Start("0 0 1 1 *"))
	s.Stop()
}

func TestScheduler_SyncOnceUpdatesOutdatedPackage(t *testing.T) {
	archive := buildGreeterZip(t)
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(archive)
	}))
	defer mirror.Close()

	repoIndex := `{"content":{"greeter":{"name":"greeter","type":"greeter","versions":[{"version":2,"mirrors":["` + mirror.URL + `"]}]}}}`
	repo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(repoIndex))
	}))
	defer repo.Close()

	dir := t.TempDir()
	in := NewInstaller(dir, descriptor.Platform("linux-amd64"), downloader.NewPool(), nil)

	manifest := &Manifest{Packages: make(map[string]LocalPackage)}
	manifest.Put(LocalPackage{Name: "greeter", Type: "greeter", Version: 1, Path: dir})
	require.NoError(t, manifest.Save(in.ManifestPath))

	s := NewScheduler(in, []string{repo.URL}, nil)
	s.syncOnce()

	updated, err := LoadManifest(in.ManifestPath)
	require.NoError(t, err)
	require.Contains(t, updated.Packages, "greeter")
	assert.EqualValues(t, 2, updated.Packages["greeter"].Version)
}

func TestScheduler_SyncOnceLogsAndContinuesOnFetchFailure(t *testing.T) {
	in := NewInstaller(t.TempDir(), descriptor.Platform("linux-amd64"), downloader.NewPool(), nil)
	manifest := &Manifest{Packages: make(map[string]LocalPackage)}
	manifest.Put(LocalPackage{Name: "greeter", Type: "greeter", Version: 1})
	require.NoError(t, manifest.Save(in.ManifestPath))

	s := NewScheduler(in, []string{"http://127.0.0.1:0/unreachable"}, nil)

	assert.NotPanics(t, func() {
		s.syncOnce()
	})

	unchanged, err := LoadManifest(in.ManifestPath)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unchanged.Packages["greeter"].Version)
}
