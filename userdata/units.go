// Copyright IBM Corp. 2024, 2025
// SPDX-License-Identifier: MPL-2.0

package userdata

import (
	domain "github.com/econnell/deis/contrib/gen-userdata/internal/shared"
)

const (
	// EtcdDataDir is where etcd keeps its data once the ephemeral volume is
	// mounted.
	EtcdDataDir = "/media/ephemeral/etcd"

	commandStart = "start"
)

// Unit bodies are kept exactly as coreos-cloudinit expects them, including the
// leading newline and the two space indentation.
const (
	formatEphemeralVolume = `
  [Unit]
  Description=Formats the ephemeral volume
  ConditionPathExists=!/etc/ephemeral-volume-formatted
  [Service]
  Type=oneshot
  RemainAfterExit=yes
  ExecStart=/usr/sbin/wipefs -f /dev/xvdb
  ExecStart=/usr/sbin/mkfs.ext4 -i 4096 -b 4096 /dev/xvdb
  ExecStart=/bin/touch /etc/ephemeral-volume-formatted
`

	mountEphemeralVolume = `
  [Unit]
  Description=Formats and mounts the ephemeral drive
  Requires=format-ephemeral-volume.service
  After=format-ephemeral-volume.service
  [Mount]
  What=/dev/xvdb
  Where=/media/ephemeral
  Type=ext4
`

	prepareEtcdDataDirectory = `
  [Unit]
  Description=Prepares the etcd data directory
  Requires=media-ephemeral.mount
  After=media-ephemeral.mount
  Before=etcd.service
  [Service]
  Type=oneshot
  RemainAfterExit=yes
  ExecStart=/usr/bin/mkdir -p /media/ephemeral/etcd
  ExecStart=/usr/bin/chown -R etcd:etcd /media/ephemeral/etcd
`

	formatDockerVolume = `
  [Unit]
  Description=Formats the added EBS volume for Docker
  ConditionPathExists=!/etc/docker-volume-formatted
  [Service]
  Type=oneshot
  RemainAfterExit=yes
  ExecStart=/usr/sbin/wipefs -f /dev/xvdf
  ExecStart=/usr/sbin/mkfs.ext4 -i 4096 -b 4096 /dev/xvdf
  ExecStart=/bin/touch /etc/docker-volume-formatted
`

	mountDockerVolume = `
  [Unit]
  Description=Mount Docker volume to /var/lib/docker
  Requires=format-docker-volume.service
  After=format-docker-volume.service
  Before=docker.service
  [Mount]
  What=/dev/xvdf
  Where=/var/lib/docker
  Type=ext4
`
)

// EC2Units returns the units that prepare the instance store and the Docker
// EBS volume. coreos-cloudinit starts units in list order, so they have to
// run before etcd and fleet are started.
func EC2Units() []domain.Unit {
	return []domain.Unit{
		{Name: "format-ephemeral-volume.service", Command: commandStart, Content: formatEphemeralVolume},
		{Name: "media-ephemeral.mount", Command: commandStart, Content: mountEphemeralVolume},
		{Name: "prepare-etcd-data-directory.service", Command: commandStart, Content: prepareEtcdDataDirectory},
		{Name: "format-docker-volume.service", Command: commandStart, Content: formatDockerVolume},
		{Name: "var-lib-docker.mount", Command: commandStart, Content: mountDockerVolume},
	}
}
