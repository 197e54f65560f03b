// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package cloudinit

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/diskfs/go-diskfs/backend/file"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
)

// Entry is a file placed in the image. Path is absolute inside the image.
type Entry struct {
	Path   string
	Reader io.Reader
}

// Write creates an ISO-9660 image at isoPath with the given volume label
// holding the files in layout.
func Write(isoPath, label string, layout []Entry) error {
	workdir, err := os.MkdirTemp("", "cidata")
	if err != nil {
		return fmt.Errorf("cloudinit: unable to create workspace: %w", err)
	}
	defer os.RemoveAll(workdir)

	if err := os.Remove(isoPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cloudinit: unable to remove existing image %s: %w", isoPath, err)
	}

	isoFile, err := os.Create(isoPath)
	if err != nil {
		return fmt.Errorf("cloudinit: unable to create image %s: %w", isoPath, err)
	}
	defer isoFile.Close()

	fs, err := iso9660.Create(file.New(isoFile, false), 0, 0, 0, workdir)
	if err != nil {
		return fmt.Errorf("cloudinit: unable to create iso filesystem: %w", err)
	}

	for _, e := range layout {
		if _, err := writeFile(fs, e.Path, e.Reader); err != nil {
			return err
		}
	}

	err = fs.Finalize(iso9660.FinalizeOptions{
		RockRidge:        true,
		VolumeIdentifier: label,
	})
	if err != nil {
		return fmt.Errorf("cloudinit: unable to finalize image %s: %w", isoPath, err)
	}

	return nil
}

func writeFile(fs *iso9660.FileSystem, pathStr string, r io.Reader) (int64, error) {
	if dir := path.Dir(pathStr); dir != "/" && dir != "." {
		if err := fs.Mkdir(dir); err != nil {
			return 0, fmt.Errorf("cloudinit: unable to create directory %s: %w", dir, err)
		}
	}

	f, err := fs.OpenFile(pathStr, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return 0, fmt.Errorf("cloudinit: unable to open %s: %w", pathStr, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("cloudinit: unable to write %s: %w", pathStr, err)
	}

	return n, nil
}
