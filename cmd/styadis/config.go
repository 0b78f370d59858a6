// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/alecthomas/kong"
	"sigs.k8s.io/yaml"
)

// yamlConfig is a kong configuration loader for YAML files. Keys are flag
// names with dashes replaced by underscores, for example:
//
//	max_redirects: 5
//	timeout: 10s
//	listen: ":8080"
func yamlConfig(r io.Reader) (kong.Resolver, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	js, err := yaml.YAMLToJSON(bs)
	if err != nil {
		return nil, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	if bytes.Equal(bytes.TrimSpace(js), []byte("null")) {
		js = []byte("{}")
	}
	return kong.JSON(bytes.NewReader(js))
}
