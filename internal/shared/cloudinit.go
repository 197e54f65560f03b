// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package domain

// Unit is a systemd unit entry of the coreos.units list in a cloud-config
// document. Content holds the unit file body as consumed by systemd.
type Unit struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Content string `yaml:"content"`
}

type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname,omitempty"`
}
