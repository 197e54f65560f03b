// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package userdata

import (
	"testing"

	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
	"github.com/shoenig/test/must"
)

func TestValidateUnits_EC2Units(t *testing.T) {
	must.NoError(t, ValidateUnits(EC2Units()))
}

func TestValidateUnits(t *testing.T) {
	ec2 := EC2Units()

	tests := []struct {
		name    string
		units   []domain.Unit
		wantErr error
	}{
		{
			name:  "empty list",
			units: nil,
		},
		{
			name:    "empty name",
			units:   []domain.Unit{{Command: commandStart, Content: formatDockerVolume}},
			wantErr: ErrEmptyUnitName,
		},
		{
			name:    "duplicate unit",
			units:   []domain.Unit{ec2[0], ec2[0]},
			wantErr: ErrDuplicateUnit,
		},
		{
			name:    "dependency started later",
			units:   []domain.Unit{ec2[1], ec2[0]},
			wantErr: ErrUnitOrder,
		},
		{
			name: "dependency outside the list",
			units: []domain.Unit{
				ec2[2],
			},
		},
		{
			name: "unparsable content",
			units: []domain.Unit{
				{Name: "broken.service", Command: commandStart, Content: "\n  [Unit\n"},
			},
			wantErr: ErrInvalidContent,
		},
		{
			name: "service without service section",
			units: []domain.Unit{
				{Name: "broken.service", Command: commandStart, Content: "\n  [Unit]\n  Description=broken\n"},
			},
			wantErr: ErrMissingSection,
		},
		{
			name: "mount without where",
			units: []domain.Unit{
				{Name: "media-ephemeral.mount", Command: commandStart, Content: "\n  [Unit]\n  Description=broken\n  [Mount]\n  What=/dev/xvdb\n"},
			},
			wantErr: ErrMissingOption,
		},
		{
			name: "mount name does not match mount point",
			units: []domain.Unit{
				{Name: "ephemeral.mount", Command: commandStart, Content: mountEphemeralVolume},
			},
			wantErr: ErrMountName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnits(tt.units)
			if tt.wantErr != nil {
				must.ErrorIs(t, err, tt.wantErr)
				return
			}

			must.NoError(t, err)
		})
	}
}

func TestValidateUnits_CollectsAll(t *testing.T) {
	units := []domain.Unit{
		{Name: "", Command: commandStart},
		{Name: "ephemeral.mount", Command: commandStart, Content: mountEphemeralVolume},
	}

	err := ValidateUnits(units)
	must.ErrorIs(t, err, ErrEmptyUnitName)
	must.ErrorIs(t, err, ErrMountName)
}

func TestParseUnit(t *testing.T) {
	opts, err := parseUnit(prepareEtcdDataDirectory)
	must.NoError(t, err)

	got := map[string][]string{}
	for _, o := range opts {
		got[o.Section+"."+o.Name] = append(got[o.Section+"."+o.Name], o.Value)
	}

	must.Eq(t, []string{"media-ephemeral.mount"}, got["Unit.Requires"])
	must.Eq(t, []string{"etcd.service"}, got["Unit.Before"])
	must.Eq(t, []string{
		"/usr/bin/mkdir -p /media/ephemeral/etcd",
		"/usr/bin/chown -R etcd:etcd /media/ephemeral/etcd",
	}, got["Service.ExecStart"])
}
