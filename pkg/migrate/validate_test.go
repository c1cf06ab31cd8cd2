package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestCreateAtUsesVersionAndSlug(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 5, 9, 4, 0, 0, time.UTC)

	path, err := createAt(dir, "  Add QC notes!  ", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260105090400_add_qc_notes.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "-- Add QC notes!\n"))
	require.NoError(t, checkAnnotations(string(body)))

	_, err = createAt(dir, "add qc notes", now)
	require.ErrorContains(t, err, "already exists")

	_, err = createAt(dir, "!!!", now)
	require.Error(t, err)
}

func TestCheckAnnotations(t *testing.T) {
	cases := map[string]struct {
		body    string
		wantErr string
	}{
		"ok": {
			body: "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 2;\n",
		},
		"missing down": {
			body:    "-- +goose Up\nSELECT 1;\n",
			wantErr: "missing",
		},
		"down first": {
			body:    "-- +goose Down\nSELECT 2;\n-- +goose Up\nSELECT 1;\n",
			wantErr: "must come before",
		},
		"unterminated": {
			body:    "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
			wantErr: "inside a statement block",
		},
		"stray end": {
			body:    "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
			wantErr: "without StatementBegin",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := checkAnnotations(tc.body)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	good := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 2;\n"
	write("20260105090000_first.sql", good)
	write("20260105090000_second.sql", good)
	write("bad-name.sql", good)
	write("20260105090100_no_down.sql", "-- +goose Up\nSELECT 1;\n")
	write("README.md", "ignored")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "grn_qc_split", Slug("GRN / QC split"))
	assert.Equal(t, "", Slug("--"))
}
