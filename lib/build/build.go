// Copyright (C) 2019 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package build

import (
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const Program = "styadis"

var (
	// Injected by build script
	Version = "unknown-dev"
	Host    = "unknown" // Set by build script
	User    = "unknown" // Set by build script
	Stamp   = "0"       // Set by build script

	// Set by init()
	Date        time.Time
	IsRelease   bool
	IsBeta      bool
	LongVersion string
	UserAgent   string

	// Set by Go build tags
	Tags []string

	AllowedVersionExp = regexp.MustCompile(`^v\d+\.\d+\.\d+(-[a-z0-9]+)*(\.\d+)*(\+\d+-g[0-9a-f]+)?(-[^\s]+)?$`)
)

const versionExtraAllowedChars = "abcdefghijklmnopqrstuvwxyz0123456789-."

func init() {
	if Version != "unknown-dev" {
		// If not a generic dev build, version string should come from git describe
		if !AllowedVersionExp.MatchString(Version) {
			log.Fatalf("Invalid version string %q;\n\tdoes not match regexp %v", Version, AllowedVersionExp)
		}
	}
	setBuildData()
}

func setBuildData() {
	// A release is something like "v0.1.2", with an optional suffix of
	// letters and dot separated numbers like "-beta3.47". Everything else
	// with a dash in it is some sort of beta or special build.
	exp := regexp.MustCompile(`^v\d+\.\d+\.\d+(-[a-z]+[\d\.]+)?$`)
	IsRelease = exp.MatchString(Version)
	IsBeta = strings.Contains(Version, "-")

	stamp, _ := strconv.Atoi(Stamp)
	Date = time.Unix(int64(stamp), 0)

	date := Date.UTC().Format("2006-01-02 15:04:05 MST")
	LongVersion = fmt.Sprintf(`%s %s (%s %s-%s) %s@%s %s`, Program, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, User, Host, date)

	if len(Tags) > 0 {
		LongVersion = fmt.Sprintf("%s [%s]", LongVersion, strings.Join(Tags, ", "))
	}

	UserAgent = fmt.Sprintf("%s/%s (%s %s-%s)", Program, filterString(Version, versionExtraAllowedChars+"v+"), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// filterString returns a copy of s with all characters not in allowedChars
// removed.
func filterString(s, allowedChars string) string {
	var res strings.Builder
	for _, c := range s {
		if strings.ContainsRune(allowedChars, c) {
			res.WriteRune(c)
		}
	}
	return res.String()
}
