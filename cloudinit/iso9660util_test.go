// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package cloudinit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/diskfs/go-diskfs/backend/file"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"github.com/shoenig/test/must"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name      string
		isoPath   string
		label     string
		layout    []Entry
		wantError bool
	}{
		{
			name:    "Empty layout",
			isoPath: filepath.Join(t.TempDir(), "test_empty.iso"),
			label:   "EMPTY",
			layout:  []Entry{},
		},
		{
			name:    "Single file",
			isoPath: filepath.Join(t.TempDir(), "test_single_file.iso"),
			label:   "SINGLE",
			layout: []Entry{
				{
					Path:   "/user-data",
					Reader: bytes.NewReader([]byte("#cloud-config\n---\n")),
				},
			},
		},
		{
			name:    "Nested file",
			isoPath: filepath.Join(t.TempDir(), "test_nested_file.iso"),
			label:   "NESTED",
			layout: []Entry{
				{
					Path:   "/openstack/latest/user_data",
					Reader: bytes.NewReader([]byte("#cloud-config\n---\n")),
				},
			},
		},
		{
			name:      "Missing directory",
			isoPath:   filepath.Join(t.TempDir(), "missing", "test.iso"),
			label:     "MISSING",
			layout:    []Entry{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Write(tt.isoPath, tt.label, tt.layout)
			if tt.wantError {
				must.Error(t, err)
				return
			}

			must.NoError(t, err)
			must.FileExists(t, tt.isoPath)
		})
	}
}

func TestWriteFile(t *testing.T) {
	tests := []struct {
		name    string
		pathStr string
		content string
	}{
		{
			name:    "Create new file",
			pathStr: "/newfile.txt",
			content: "This is a new file",
		},
		{
			name:    "Create file in new directory",
			pathStr: "/newdir/newfile.txt",
			content: "This is a file in a new directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workdir := t.TempDir()

			isoFile, err := os.Create(filepath.Join(workdir, "test.iso"))
			must.NoError(t, err)
			defer isoFile.Close()

			fs, err := iso9660.Create(file.New(isoFile, false), 0, 0, 0, t.TempDir())
			must.NoError(t, err)

			n, err := writeFile(fs, tt.pathStr, bytes.NewReader([]byte(tt.content)))
			must.NoError(t, err)
			must.Eq(t, int64(len(tt.content)), n)
		})
	}
}
