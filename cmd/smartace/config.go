package main

import (
	"encoding/json"
	"os"
	"path"
	"strings"

	"github.com/omeid/uconfig"
	"github.com/omeid/uconfig/plugins"
	"github.com/omeid/uconfig/plugins/file"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configFilename is the filename of the config file automatically loaded
// from the --dir state directory, mirroring the teacher's single-file
// uconfig layout.
var configFilename = "smartace.json"

// config is the process-wide configuration for both the translate and
// serve subcommands; each subcommand only reads the sections it needs.
type config struct {
	MapDepth        int  `default:"4"`
	PersistentUsers int  `default:"0"`
	ConcreteUsers   bool `default:"false"`
	GlobalContracts bool `default:"false"`
	AuxAddresses    int  `default:"0"`

	Metrics struct {
		Port string `default:"9090"`
	}
	Log struct {
		Human bool `default:"false"`
		Debug bool `default:"false"`
	}
	TelemetryPublisher TelemetryPublisherConfig

	Serve ServeConfig
}

// TelemetryPublisherConfig configures the background publishing of
// locally-buffered run metrics to a remote collector.
type TelemetryPublisherConfig struct {
	Enabled            bool   `default:"false"`
	MetricsHubURL      string `default:""`
	MetricsHubAPIKey   string `default:""`
	PublishingInterval string `default:"10s"`

	BigQueryEnabled bool   `default:"false"`
	BigQueryProject string `default:""`
	BigQueryDataset string `default:""`
	BigQueryTable   string `default:""`
}

// ServeConfig configures the `serve` daemon's HTTP front door.
type ServeConfig struct {
	Port string `default:"8080"`

	RateLimInterval       string `default:"1s"`
	MaxRequestPerInterval uint64 `default:"10"`
}

func setupConfig(cmd *cobra.Command) (*config, string) {
	flagDir, _ := cmd.Flags().GetString("dir")
	dirPath := os.ExpandEnv(flagDir)
	_ = os.MkdirAll(dirPath, 0o755)

	var plgs []plugins.Plugin
	fullPath := path.Join(dirPath, configFilename)
	configFileBytes, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		log.Info().Str("config_file_path", fullPath).Msg("config file not found")
	} else if err != nil {
		log.Fatal().Str("config_file_path", fullPath).Err(err).Msg("opening config file")
	} else {
		fileStr := os.ExpandEnv(string(configFileBytes))
		plgs = append(plgs, file.NewReader(strings.NewReader(fileStr), json.Unmarshal))
	}

	conf := &config{}
	c, err := uconfig.Classic(&conf, file.Files{}, plgs...)
	if err != nil {
		c.Usage()
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	return conf, dirPath
}
