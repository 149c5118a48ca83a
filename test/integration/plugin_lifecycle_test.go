// SPDX-License-Identifier: Apache-2.0

//go:build integration

package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/plugforge/plugforge/internal/descriptor"
	"github.com/plugforge/plugforge/internal/languagemodule/lua"
	"github.com/plugforge/plugforge/internal/pkgmanager"
	"github.com/plugforge/plugforge/internal/pkgmanager/downloader"
	"github.com/plugforge/plugforge/internal/runtime"
)

func writeFile(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
}

var _ = Describe("plugin lifecycle", func() {
	It("discovers, resolves, loads, runs, and calls a Lua plugin end to end", func() {
		dir, err := os.MkdirTemp("", "plugforge-lifecycle-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir) //nolint:errcheck

		writeFile(filepath.Join(dir, "modules", "lua", "lua.module"), `{"fileVersion":1,"version":1,"language":"lua","friendlyName":"Lua"}`)
		writeFile(filepath.Join(dir, "plugins", "hello", "hello.plugin"), `{
			"fileVersion": 1, "version": 1, "entryPoint": "hello.lua",
			"languageModule": {"name": "lua"},
			"exportedMethods": [{"name": "Greet", "funcName": "Greet", "paramTypes": [{"type": "int32"}], "retType": {"type": "int32"}}]
		}`)
		writeFile(filepath.Join(dir, "plugins", "hello", "hello.lua"), "function Greet(n)\n  return n + 1\nend\n")

		engine := runtime.NewEngine(dir, "linux-amd64", nil)
		engine.RegisterHost("lua", lua.NewHost())

		Expect(engine.Initialize(context.Background())).To(Succeed())
		defer engine.Shutdown(context.Background())

		p := engine.FindPlugin("hello")
		Expect(p).NotTo(BeNil())
		Expect(p.State).To(Equal(runtime.PluginRunning))

		result, err := engine.CallMethod(context.Background(), "hello", "Greet", []uint64{41})
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(BeEquivalentTo(42))
	})

	It("installs a package from a remote repository into baseDir atomically", func() {
		dir, err := os.MkdirTemp("", "plugforge-install-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir) //nolint:errcheck

		archiveBody := buildZipArchive(map[string]string{
			"greeter.module": `{"fileVersion":1,"version":5,"language":"greeter"}`,
		})

		mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/zip")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(archiveBody)
		}))
		defer mirror.Close()

		repoIndex := `{"content":{"greeter":{"name":"greeter","type":"greeter","versions":[{"version":5,"mirrors":["` + mirror.URL + `"]}]}}}`
		repo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(repoIndex))
		}))
		defer repo.Close()

		installer := pkgmanager.NewInstaller(dir, descriptor.Platform("linux-amd64"), downloader.NewPool(), nil)
		remote, err := pkgmanager.FetchRemoteIndex(context.Background(), installer.Pool, []string{repo.URL}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(remote).To(HaveLen(1))

		Expect(installer.InstallPackage(context.Background(), remote[0], nil)).To(Succeed())
		Expect(filepath.Join(dir, "modules", "greeter", "greeter.module")).To(BeAnExistingFile())

		manifest, err := pkgmanager.LoadManifest(installer.ManifestPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(manifest.Packages).To(HaveKey("greeter"))
		Expect(manifest.Packages["greeter"].Version).To(BeEquivalentTo(5))
	})
})

func buildZipArchive(files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(zw.Close()).To(Succeed())
	return buf.Bytes()
}
