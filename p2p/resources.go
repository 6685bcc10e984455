// Copyright 2026 The golem-unlimited Authors
// This file is part of the golem-unlimited library.
//
// The golem-unlimited library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The golem-unlimited library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the golem-unlimited library. If not, see <http://www.gnu.org/licenses/>.


package p2p

import (
	"os"

	"github.com/golemfactory/golem-unlimited/log"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
)

// hostResources reports the total memory of the host and the size of the
// file system holding dir. Values that cannot be read are zero, which
// peers treat as unknown.
func hostResources(dir string, logger log.Logger) (ram, storage uint64) {
	if vm, err := mem.VirtualMemory(); err != nil {
		logger.Debug("Failed to read host memory", "err", err)
	} else {
		ram = vm.Total
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if usage, err := disk.Usage(dir); err != nil {
		logger.Debug("Failed to read disk usage", "path", dir, "err", err)
	} else {
		storage = usage.Total
	}
	return ram, storage
}
