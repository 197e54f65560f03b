// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package userdata

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-set/v2"
)

const (
	sectionUnit    = "Unit"
	sectionService = "Service"
	sectionMount   = "Mount"
)

var (
	ErrEmptyUnitName  = errors.New("unit name can not be empty")
	ErrDuplicateUnit  = errors.New("unit is defined more than once")
	ErrInvalidContent = errors.New("unit content is not valid unit file syntax")
	ErrMissingSection = errors.New("unit is missing a section")
	ErrMissingOption  = errors.New("unit is missing an option")
	ErrMountName      = errors.New("mount unit name does not match its mount point")
	ErrUnitOrder      = errors.New("unit depends on a unit that is started after it")
)

// ValidateUnits checks that every unit body parses as a unit file and that
// dependencies between the given units point backwards, since the units are
// started in list order. Units without content refer to units shipped with the
// image and only take part in the ordering check. All problems found are
// returned together.
func ValidateUnits(units []domain.Unit) error {
	var mErr *multierror.Error

	names := set.New[string](len(units))
	for _, u := range units {
		names.Insert(u.Name)
	}

	started := set.New[string](len(units))
	for i, u := range units {
		if u.Name == "" {
			mErr = multierror.Append(mErr, fmt.Errorf("unit %d: %w", i, ErrEmptyUnitName))
			continue
		}

		if started.Contains(u.Name) {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", u.Name, ErrDuplicateUnit))
			continue
		}

		if u.Content == "" {
			started.Insert(u.Name)
			continue
		}

		if err := validateUnit(u, names, started); err != nil {
			mErr = multierror.Append(mErr, err)
		}

		started.Insert(u.Name)
	}

	return mErr.ErrorOrNil()
}

func validateUnit(u domain.Unit, names, started *set.Set[string]) error {
	var mErr *multierror.Error

	opts, err := parseUnit(u.Content)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", u.Name, ErrInvalidContent, err)
	}

	sections := set.New[string](3)
	values := make(map[string][]string)
	for _, o := range opts {
		sections.Insert(o.Section)
		key := o.Section + "." + o.Name
		values[key] = append(values[key], o.Value)
	}

	required := []string{sectionUnit}
	switch path.Ext(u.Name) {
	case ".service":
		required = append(required, sectionService)
	case ".mount":
		required = append(required, sectionMount)
	}

	for _, s := range required {
		if !sections.Contains(s) {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: [%s]: %w", u.Name, s, ErrMissingSection))
		}
	}

	if path.Ext(u.Name) == ".mount" && sections.Contains(sectionMount) {
		for _, o := range []string{"What", "Where"} {
			if len(values[sectionMount+"."+o]) == 0 {
				mErr = multierror.Append(mErr, fmt.Errorf("%s: %s=: %w", u.Name, o, ErrMissingOption))
			}
		}

		if where := values[sectionMount+".Where"]; len(where) > 0 {
			expected := unit.UnitNamePathEscape(where[len(where)-1]) + ".mount"
			if expected != u.Name {
				mErr = multierror.Append(mErr, fmt.Errorf("%s: expected %s: %w", u.Name, expected, ErrMountName))
			}
		}
	}

	for _, dep := range []string{"Requires", "After"} {
		for _, v := range values[sectionUnit+"."+dep] {
			for _, name := range strings.Fields(v) {
				if names.Contains(name) && !started.Contains(name) {
					mErr = multierror.Append(mErr, fmt.Errorf("%s: %s=%s: %w", u.Name, dep, name, ErrUnitOrder))
				}
			}
		}
	}

	return mErr.ErrorOrNil()
}

// parseUnit deserializes a unit body. Lines are trimmed first, systemd ignores
// the indentation the bodies carry inside the cloud-config document.
func parseUnit(content string) ([]*unit.UnitOption, error) {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}

	return unit.DeserializeOptions(strings.NewReader(strings.Join(lines, "\n")))
}
