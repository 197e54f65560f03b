// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package cloudinit

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

const (
	// seedLabel is the volume label NoCloud looks for.
	seedLabel = "cidata"

	validFilenamePattern = `^[^<>:"/\\|?*\x00-\x1F]+$`
)

var (
	ErrInvalidPath       = errors.New("invalid image path")
	ErrMissingInstanceID = errors.New("instance id can not be empty")
)

type Controller struct {
	logger          hclog.Logger
	fileNamePattern *regexp.Regexp
}

func NewController(logger hclog.Logger) *Controller {
	return &Controller{
		logger:          logger.Named("cloud-init"),
		fileNamePattern: regexp.MustCompile(validFilenamePattern),
	}
}

// isValidFilePathSyntax checks if the string has a valid file path syntax.
func (c *Controller) isValidFilePathSyntax(filePath string) bool {
	if filePath == "" {
		return false
	}

	_, fileName := filepath.Split(filePath)
	if fileName == "" {
		return false
	}

	return c.fileNamePattern.MatchString(fileName)
}

// WriteSeed writes a NoCloud seed image to isoPath. For cloud-init to pick it
// up, user-data and meta-data need to be in the root of the disk, and it needs
// to be labeled "cidata".
func (c *Controller) WriteSeed(userData []byte, meta domain.MetaData, isoPath string) error {
	if !c.isValidFilePathSyntax(isoPath) {
		return fmt.Errorf("cloudinit: %q: %w", isoPath, ErrInvalidPath)
	}

	if meta.InstanceID == "" {
		return ErrMissingInstanceID
	}

	mdb, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cloudinit: unable to encode meta data %s: %w", meta.InstanceID, err)
	}

	c.logger.Debug("meta-data", "contents", string(mdb))

	l := []Entry{
		{
			Path:   "/meta-data",
			Reader: bytes.NewReader(mdb),
		},
		{
			Path:   "/user-data",
			Reader: bytes.NewReader(userData),
		},
	}

	if err := Write(isoPath, seedLabel, l); err != nil {
		return fmt.Errorf("cloudinit: unable to write seed image %s: %w", meta.InstanceID, err)
	}

	c.logger.Info("seed image written", "path", isoPath)
	return nil
}
