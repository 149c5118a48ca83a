// SPDX-License-Identifier: Apache-2.0

package main

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestSubcommands_Properties(t *testing.T) {
	cases := []struct {
		name      string
		cmd       func() *cobra.Command
		wantUse   string
		wantShort string
	}{
		{"install", newInstallCmd, "install", "Install"},
		{"update", newUpdateCmd, "update", "Update"},
		{"uninstall", newUninstallCmd, "uninstall", "Uninstall"},
		{"snapshot", newSnapshotCmd, "snapshot", "snapshot"},
		{"list", newListCmd, "list", "List"},
		{"diagnose", newDiagnoseCmd, "diagnose", "missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := tc.cmd()
			if !strings.HasPrefix(cmd.Use, tc.wantUse) {
				t.Errorf("Use = %q, want prefix %q", cmd.Use, tc.wantUse)
			}
			if !strings.Contains(cmd.Short, tc.wantShort) {
				t.Errorf("Short = %q, want substring %q", cmd.Short, tc.wantShort)
			}
		})
	}
}

func TestRootCmd_ListsAllSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	out := buf.String()
	for _, name := range []string{"install", "update", "uninstall", "snapshot", "list", "diagnose"} {
		if !strings.Contains(out, name) {
			t.Errorf("root help missing subcommand %q", name)
		}
	}
}

// TestInstallListSnapshotUninstallRoundTrip drives the CLI exactly as
// an operator would: install from a repository, list what landed,
// snapshot it, uninstall everything, then restore from the snapshot
// with install -f --reinstall (spec §8 scenario 6).
func TestInstallListSnapshotUninstallRoundTrip(t *testing.T) {
	dir := t.TempDir()

	archive := buildTestZip(t, map[string]string{
		"greeter.module": `{"fileVersion":1,"version":5,"language":"greeter"}`,
	})

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(archive)
	}))
	defer mirror.Close()

	repoIndex := `{"content":{"greeter":{"name":"greeter","type":"greeter","versions":[{"version":5,"mirrors":["` + mirror.URL + `"]}]}}}`
	repo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(repoIndex))
	}))
	defer repo.Close()

	run := func(args ...string) string {
		cmd := NewRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(append([]string{"--baseDir", dir, "--repositories", repo.URL}, args...))
		if err := cmd.Execute(); err != nil {
			t.Fatalf("executing %v: %v", args, err)
		}
		return buf.String()
	}

	if out := run("install", "greeter"); !strings.Contains(out, "installed greeter") {
		t.Errorf("install output = %q", out)
	}

	if out := run("list"); !strings.Contains(out, "greeter") || !strings.Contains(out, "5") {
		t.Errorf("list output after install = %q", out)
	}

	if out := run("diagnose"); !strings.Contains(out, "no missing or conflicting dependencies") {
		t.Errorf("diagnose output after clean install = %q", out)
	}

	snapshotPath := filepath.Join(dir, "snapshot.json")
	run("snapshot", snapshotPath)
	if _, err := os.Stat(snapshotPath); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	run("uninstall", "--all")
	if out := run("list"); strings.Contains(out, "greeter") {
		t.Errorf("expected greeter gone after uninstall --all, got %q", out)
	}

	run("install", "-f", snapshotPath, "--reinstall")
	if out := run("list"); !strings.Contains(out, "greeter") {
		t.Errorf("expected greeter restored from snapshot, got %q", out)
	}
}

func buildTestZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
