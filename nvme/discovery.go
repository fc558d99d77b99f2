// Copyright 2017-2022 Daniel Swarbrick. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nvme

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const sysClassNVMe = "/sys/class/nvme"

// Namespace identifies a namespace belonging to a controller.
type Namespace struct {
	Name string
	NSID uint32
}

// Controller identifies an NVMe controller and its attached namespaces, as
// discovered from sysfs (or the devfs fallback).
type Controller struct {
	Name     string
	DevPath  string
	Model    string
	Serial   string
	Firmware string
	Namespaces []Namespace
}

// DiscoverControllers enumerates NVMe controllers whose device path matches
// devicePattern (a filepath.Match-style glob, e.g. "/dev/nvme*"). It prefers
// /sys/class/nvme; if that yields nothing (including when the directory is
// absent) it falls back to globbing /dev/nvme[0-9]*. Controllers are
// returned sorted by name.
func DiscoverControllers(devicePattern string) ([]Controller, error) {
	controllers, err := discoverFromSysfs(devicePattern)
	if err != nil {
		return nil, err
	}

	if len(controllers) == 0 {
		controllers, err = discoverFromDevfs(devicePattern)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(controllers, func(i, j int) bool { return controllers[i].Name < controllers[j].Name })
	return controllers, nil
}

func discoverFromSysfs(devicePattern string) ([]Controller, error) {
	entries, err := os.ReadDir(sysClassNVMe)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errIO(sysClassNVMe, err)
	}

	var controllers []Controller
	for _, entry := range entries {
		name := entry.Name()
		if !IsControllerName(name) {
			continue
		}

		devPath := "/dev/" + name
		matched, err := filepath.Match(devicePattern, devPath)
		if err != nil {
			return nil, errParse("invalid device pattern %q: %v", devicePattern, err)
		}
		if !matched {
			continue
		}

		sysPath := filepath.Join(sysClassNVMe, name)
		namespaces := discoverNamespaces(name, sysPath)
		sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].Name < namespaces[j].Name })

		controllers = append(controllers, Controller{
			Name:       name,
			DevPath:    devPath,
			Model:      readAttr(filepath.Join(sysPath, "model")),
			Serial:     readAttr(filepath.Join(sysPath, "serial")),
			Firmware:   readAttr(filepath.Join(sysPath, "firmware_rev")),
			Namespaces: namespaces,
		})
	}

	return controllers, nil
}

func discoverFromDevfs(devicePattern string) ([]Controller, error) {
	paths, err := filepath.Glob("/dev/nvme[0-9]*")
	if err != nil {
		return nil, errParse("invalid devfs glob: %v", err)
	}

	byName := map[string]Controller{}
	for _, path := range paths {
		name := filepath.Base(path)
		if !IsControllerName(name) {
			continue
		}

		matched, err := filepath.Match(devicePattern, path)
		if err != nil {
			return nil, errParse("invalid device pattern %q: %v", devicePattern, err)
		}
		if !matched {
			continue
		}

		byName[name] = Controller{Name: name, DevPath: path}
	}

	controllers := make([]Controller, 0, len(byName))
	for _, c := range byName {
		controllers = append(controllers, c)
	}
	return controllers, nil
}

func discoverNamespaces(controllerName, controllerSysPath string) []Namespace {
	entries, err := os.ReadDir(controllerSysPath)
	if err != nil {
		return nil
	}

	var namespaces []Namespace
	for _, entry := range entries {
		name := entry.Name()
		nsid, ok := ParseNamespaceName(controllerName, name)
		if !ok {
			continue
		}
		namespaces = append(namespaces, Namespace{Name: name, NSID: nsid})
	}

	return namespaces
}

// ParseNamespaceName extracts the namespace ID from namespaceName given its
// owning controllerName, e.g. ("nvme0", "nvme0n1") -> (1, true). Only the
// run of ASCII digits immediately after "<controller>n" counts; trailing
// non-digit characters (as in "nvme0n1p1") are ignored for the purpose of
// finding the digit run, but the name must begin with that exact prefix.
func ParseNamespaceName(controllerName, namespaceName string) (uint32, bool) {
	prefix := controllerName + "n"
	suffix, ok := strings.CutPrefix(namespaceName, prefix)
	if !ok || suffix == "" {
		return 0, false
	}

	digitLen := 0
	for digitLen < len(suffix) && suffix[digitLen] >= '0' && suffix[digitLen] <= '9' {
		digitLen++
	}
	if digitLen == 0 {
		return 0, false
	}

	nsid, err := strconv.ParseUint(suffix[:digitLen], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(nsid), true
}

// IsControllerName reports whether value is a bare controller name of the
// form "nvme" followed by one or more ASCII digits and nothing else -
// "nvme0" and "nvme12" qualify, "nvme0n1" and "sda" do not.
func IsControllerName(value string) bool {
	suffix, ok := strings.CutPrefix(value, "nvme")
	if !ok || suffix == "" {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return false
		}
	}
	return true
}

func readAttr(path string) string {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(contents))
}
