// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package userdata

import (
	"fmt"
	"io"
	"path/filepath"

	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
	"github.com/hashicorp/go-hclog"
)

// BasePathFor returns the location of the shared CoreOS user-data relative to
// the executable at exe: ../coreos/user-data. Symlinks to the executable are
// followed first.
func BasePathFor(exe string) (string, error) {
	exe, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("userdata: unable to resolve executable path: %w", err)
	}

	return filepath.Join(filepath.Dir(exe), "..", "coreos", "user-data"), nil
}

type Injector struct {
	logger      hclog.Logger
	units       []domain.Unit
	etcdDataDir string
}

func NewInjector(logger hclog.Logger) *Injector {
	return &Injector{
		logger:      logger.Named("injector"),
		units:       EC2Units(),
		etcdDataDir: EtcdDataDir,
	}
}

// Inject adds the EC2 units in front of the document units and moves the etcd
// data directory onto the ephemeral volume.
func (i *Injector) Inject(doc *Document) error {
	if err := ValidateUnits(i.units); err != nil {
		return fmt.Errorf("userdata: invalid units: %w", err)
	}

	if err := doc.PrependUnits(i.units); err != nil {
		return err
	}

	i.logger.Debug("units added", "count", len(i.units))
	i.checkUnits(doc)

	old, err := doc.EtcdDataDir()
	if err != nil {
		return err
	}

	if err := doc.SetEtcdDataDir(i.etcdDataDir); err != nil {
		return err
	}

	i.logger.Debug("etcd data directory set", "old", old, "new", i.etcdDataDir)
	return nil
}

// Generate loads the base document at basePath, injects the units and writes
// the resulting cloud-config to w.
func (i *Injector) Generate(basePath string, w io.Writer) error {
	i.logger.Debug("loading base document", "path", basePath)

	doc, err := LoadFile(basePath)
	if err != nil {
		return err
	}

	if err := i.Inject(doc); err != nil {
		return fmt.Errorf("userdata: unable to update %s: %w", basePath, err)
	}

	return doc.Encode(w)
}

// checkUnits validates the whole unit list, base document units included.
// Problems are only reported, the base document is owned by its authors.
func (i *Injector) checkUnits(doc *Document) {
	units, err := doc.Units()
	if err != nil {
		i.logger.Warn("unable to read units for validation", "error", err)
		return
	}

	if err := ValidateUnits(units); err != nil {
		i.logger.Warn("units failed validation", "error", err)
	}
}
