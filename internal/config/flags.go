/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package config

import (
	"os"

	"github.com/spf13/pflag"
)

// HRWFlags holds the values of command line flags
type HRWFlags struct {
	PrintVersion  bool
	ValidateOnly  bool
	ConfigPath    string
	customPath    bool
	LogLevel      string
	InstanceID    int
	RuleFiles     []string
}

const (
	cfConfig       = "config"
	cfVersion      = "version"
	cfValidate     = "validate-only"
	cfLogLevel     = "log-level"
	cfInstanceID   = "instance-id"
	cfRuleFile     = "rules"

	defaultConfigPath = "/etc/hrw/hrw.conf"
)

// parseFlags parses the command line flags into the Flags collection
func (c *HRWConfig) parseFlags(applicationName string, arguments []string) {
	f := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)

	f.BoolVar(&Flags.PrintVersion, cfVersion, false, "Prints the version number and exits")
	f.BoolVar(&Flags.ValidateOnly, cfValidate, false, "Compiles the rule files and exits with the result")
	f.StringVarP(&Flags.ConfigPath, cfConfig, "c", "", "Path to the config file")
	f.StringVar(&Flags.LogLevel, cfLogLevel, "", "Level of Logging to use (debug, info, warn, error)")
	f.IntVar(&Flags.InstanceID, cfInstanceID, 0, "Instance ID for when multiple processes run on the same host")
	f.StringArrayVar(&Flags.RuleFiles, cfRuleFile, nil, "Rule file to compile (repeatable)")
	f.SetOutput(os.Stdout)
	f.Parse(arguments)

	if Flags.ConfigPath != "" {
		Flags.customPath = true
	} else {
		Flags.ConfigPath = defaultConfigPath
	}
}

// loadFlags applies parsed flags on top of the file and default configuration
func (c *HRWConfig) loadFlags() {
	if len(Flags.RuleFiles) > 0 {
		c.Rules.Files = Flags.RuleFiles
	}
	if Flags.LogLevel != "" {
		c.Logging.LogLevel = Flags.LogLevel
	}
	if Flags.InstanceID > 0 {
		c.Main.InstanceID = Flags.InstanceID
	}
}
