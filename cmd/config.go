// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
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

package cmd

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const redacted = "********"

var secretKeys = []string{"tiingo.token", "database.url"}

func init() {
	rootCmd.AddCommand(configCmd)
}

// effectiveSettings returns all settings with secrets redacted
func effectiveSettings() map[string]interface{} {
	settings := viper.AllSettings()
	for _, key := range secretKeys {
		if viper.GetString(key) == "" {
			continue
		}
		section, name, _ := strings.Cut(key, ".")
		if sub, ok := settings[section].(map[string]interface{}); ok {
			sub[name] = redacted
		}
	}
	return settings
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Run: func(cmd *cobra.Command, args []string) {
		out, err := toml.Marshal(effectiveSettings())
		if err != nil {
			log.Fatal().Err(err).Msg("could not serialize configuration")
		}
		fmt.Print(string(out))
	},
}
