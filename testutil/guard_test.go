package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"vaine/internal/infra/blob/fs\"\n)\n")
	write("b.go", "package x\n\nimport \"vaine/internal/core\"\n")
	write("c_test.go", "package x\n\nimport \"vaine/internal/infra/ledger/sqlite\"\n")

	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "vaine/internal/infra/blob/fs (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	viols, err = directImportViolations(dir, AnyOf(InfraImportForbidden, InternalImportForbidden))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 2 {
		t.Fatalf("expected 2 violations, got %v", viols)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		path string
		want bool
	}{
		{InternalImportForbidden, "vaine/internal/core", true},
		{InternalImportForbidden, "vaine/pkg/domain", false},
		{InfraImportForbidden, "vaine/internal/infra/blob/s3", true},
		{InfraImportForbidden, "vaine/internal/blob", false},
		{AdapterImportForbidden, "vaine/internal/adapters/session", true},
		{AdapterImportForbidden, "vaine/cmd/vaine", true},
		{AdapterImportForbidden, "vaine/internal/export", false},
	}
	for _, tc := range cases {
		if got := tc.pred(tc.path); got != tc.want {
			t.Fatalf("predicate(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestFailIfDirectViolations(t *testing.T) {
	r := &recorder{}
	failIfDirectViolations(r, "reason", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIfDirectViolations(r, "reason", []string{"x"})
	if r.msg == "" {
		t.Fatalf("expected failure")
	}
}
