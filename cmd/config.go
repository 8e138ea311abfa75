// Common configuration/setup functions
package cmd

import (
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/serverlessresearch/ecsmig/pkg/ecs"
	"github.com/serverlessresearch/ecsmig/pkg/migrate"
	"github.com/serverlessresearch/ecsmig/pkg/s3verify"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "ECSMIG"
	defaultLogFile = "ecsmig.log"
)

type settings struct {
	migration migrate.Config
	logFile   string
	logLevel  string
}

// Order of precedence: flags, ECSMIG_* environment, config file, defaults.
func initConfig(cfgFile string) (*viper.Viper, error) {
	// A private viper context per run
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, errors.Wrap(err, "Invalid config file path")
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./configs")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName("ecsmig")
	}

	if err := v.ReadInConfig(); err != nil {
		// Only an explicitly named config file has to exist
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			return nil, errors.Wrap(err, "Failed to load config")
		}
	}
	return v, nil
}

func getSettings(v *viper.Viper) (settings, error) {
	filename, err := expandPath(v.GetString("filename"))
	if err != nil {
		return settings{}, err
	}
	logFile, err := expandPath(v.GetString("logfile"))
	if err != nil {
		return settings{}, err
	}
	if logFile == "" {
		logFile = defaultLogFile
	}

	op, err := migrate.ParseOperation(v.GetString("operation"))
	if err != nil && v.GetString("operation") != "" {
		return settings{}, err
	}

	cfg := migrate.Config{
		ECS: ecs.Config{
			Host:             v.GetString("hostname"),
			Username:         v.GetString("username"),
			Password:         v.GetString("password"),
			Namespace:        v.GetString("namespace"),
			ReplicationGroup: v.GetString("replicationgroup"),
			TestRun:          v.GetBool("testrun"),
			Insecure:         v.GetBool("insecure"),
			Timeout:          v.GetDuration("timeout"),
		},
		Operation: op,
		Filename:  filename,
	}
	if endpoint := v.GetString("s3-endpoint"); endpoint != "" {
		cfg.Verify = &s3verify.Config{
			Endpoint:  endpoint,
			AccessKey: v.GetString("s3-access-key"),
			SecretKey: v.GetString("s3-secret-key"),
			Region:    v.GetString("s3-region"),
			Insecure:  cfg.ECS.Insecure,
		}
	}
	if err := cfg.Validate(); err != nil {
		return settings{}, err
	}

	return settings{
		migration: cfg,
		logFile:   logFile,
		logLevel:  v.GetString("log-level"),
	}, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", errors.Wrapf(err, "Invalid path %q", p)
	}
	return expanded, nil
}
