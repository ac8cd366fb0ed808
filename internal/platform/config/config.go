// Package config loads helm-release configuration from defaults, an optional
// YAML file, HELM_RELEASE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "HELM_RELEASE"
	configEnv      = envPrefix + "_CONFIG"
	configName     = ".helm-release"
	redactedSecret = "******"
)

// Config holds the configuration of one helm-release invocation.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"logLevel"`

	ChartPath string `yaml:"chartPath"`
	Project   string `yaml:"project"`

	// Stack repository holding the helmfile descriptor
	Stack     string `yaml:"stack"`
	StackFile string `yaml:"stackFile"`

	OverrideChartVersion string `yaml:"overrideChartVersion"`
	OverrideAppVersion   string `yaml:"overrideAppVersion"`
	BumpVersion          bool   `yaml:"bumpVersion"`
	BumpStrategy         string `yaml:"bumpStrategy"`
	DeleteLocalPackage   bool   `yaml:"deleteLocalPackage"`

	CommandTimeout time.Duration `yaml:"commandTimeout"`
	UploadTimeout  time.Duration `yaml:"uploadTimeout"`

	OTelEnabled bool `yaml:"otelEnabled"`

	Git        GitConfig        `yaml:"git"`
	Signature  SignatureConfig  `yaml:"signature"`
	Repository RepositoryConfig `yaml:"repository"`
	GitHub     GitHubConfig     `yaml:"github"`
}

// GitConfig toggles the git side effects of a release. Push covers
// commits, PushTags the tags created by the run.
type GitConfig struct {
	RequireCleanWorkingDirectory bool `yaml:"requireCleanWorkingDirectory"`
	Tag                          bool `yaml:"tag"`
	Commit                       bool `yaml:"commit"`
	Push                         bool `yaml:"push"`
	PushTags                     bool `yaml:"pushTags"`
}

// SignatureConfig enables package signing when both fields are set.
type SignatureConfig struct {
	Key      string `yaml:"key"`
	KeyStore string `yaml:"keyStore"`
}

// RepositoryConfig is the chart repository packages are published to.
type RepositoryConfig struct {
	URL      string `yaml:"url"`
	IndexURL string `yaml:"indexUrl"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GitHubConfig enables GitHub release announcements when Repository is set.
type GitHubConfig struct {
	Repository     string `yaml:"repository"`
	Token          string `yaml:"token"`
	AppID          int64  `yaml:"appId"`
	InstallationID int64  `yaml:"installationId"`
	PrivateKey     string `yaml:"privateKey"`
}

var defaults = map[string]any{
	"debug":                            false,
	"logLevel":                         "info",
	"chartPath":                        ".",
	"project":                          "",
	"stack":                            "",
	"stackFile":                        "helmfile.yaml",
	"overrideChartVersion":             "",
	"overrideAppVersion":               "",
	"bumpVersion":                      true,
	"bumpStrategy":                     "MINOR",
	"deleteLocalPackage":               true,
	"commandTimeout":                   10 * time.Minute,
	"uploadTimeout":                    5 * time.Minute,
	"otelEnabled":                      false,
	"git.requireCleanWorkingDirectory": true,
	"git.tag":                          true,
	"git.commit":                       true,
	"git.push":                         true,
	"git.pushTags":                     true,
	"signature.key":                    "",
	"signature.keyStore":               "~/.gnupg/pubring.gpg",
	"repository.url":                   "",
	"repository.indexUrl":              "",
	"repository.username":              "",
	"repository.password":              "",
	"github.repository":                "",
	"github.token":                     "",
	"github.appId":                     0,
	"github.installationId":            0,
	"github.privateKey":                "",
}

// Load builds the Config. configFile overrides HELM_RELEASE_CONFIG; when
// neither is set, .helm-release.yaml in the working directory is read if it
// exists. Flags in fs named after a key in kebab case ("chart-path",
// "git-push") take precedence over every other source.
func Load(configFile string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return Config{}, fmt.Errorf("binding env for %s: %w", key, err)
		}
		if fs == nil {
			continue
		}
		if f := fs.Lookup(FlagName(key)); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("binding flag %s: %w", f.Name, err)
			}
		}
	}

	if configFile == "" {
		configFile = os.Getenv(configEnv)
	}
	if err := readConfigFile(v, configFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Debug:                v.GetBool("debug"),
		LogLevel:             strings.ToLower(v.GetString("logLevel")),
		ChartPath:            v.GetString("chartPath"),
		Project:              v.GetString("project"),
		Stack:                v.GetString("stack"),
		StackFile:            v.GetString("stackFile"),
		OverrideChartVersion: v.GetString("overrideChartVersion"),
		OverrideAppVersion:   v.GetString("overrideAppVersion"),
		BumpVersion:          v.GetBool("bumpVersion"),
		BumpStrategy:         strings.ToUpper(strings.TrimSpace(v.GetString("bumpStrategy"))),
		DeleteLocalPackage:   v.GetBool("deleteLocalPackage"),
		CommandTimeout:       v.GetDuration("commandTimeout"),
		UploadTimeout:        v.GetDuration("uploadTimeout"),
		OTelEnabled:          v.GetBool("otelEnabled"),
		Git: GitConfig{
			RequireCleanWorkingDirectory: v.GetBool("git.requireCleanWorkingDirectory"),
			Tag:                          v.GetBool("git.tag"),
			Commit:                       v.GetBool("git.commit"),
			Push:                         v.GetBool("git.push"),
			PushTags:                     v.GetBool("git.pushTags"),
		},
		Signature: SignatureConfig{
			Key:      v.GetString("signature.key"),
			KeyStore: v.GetString("signature.keyStore"),
		},
		Repository: RepositoryConfig{
			URL:      v.GetString("repository.url"),
			IndexURL: v.GetString("repository.indexUrl"),
			Username: v.GetString("repository.username"),
			Password: v.GetString("repository.password"),
		},
		GitHub: GitHubConfig{
			Repository:     v.GetString("github.repository"),
			Token:          v.GetString("github.token"),
			AppID:          v.GetInt64("github.appId"),
			InstallationID: v.GetInt64("github.installationId"),
			PrivateKey:     v.GetString("github.privateKey"),
		},
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if cfg.BumpStrategy == "" {
		cfg.BumpStrategy = "MINOR"
	}

	keyStore, err := homedir.Expand(cfg.Signature.KeyStore)
	if err != nil {
		return Config{}, fmt.Errorf("expanding signature.keyStore: %w", err)
	}
	cfg.Signature.KeyStore = keyStore

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid logLevel %q (expected debug, info, warn or error)", c.LogLevel))
	}
	switch c.BumpStrategy {
	case "MAJOR", "MINOR", "PATCH":
	default:
		errs = append(errs, fmt.Errorf("invalid bumpStrategy %q (expected MAJOR, MINOR or PATCH)", c.BumpStrategy))
	}
	if c.CommandTimeout < 0 {
		errs = append(errs, fmt.Errorf("commandTimeout must not be negative, got %s", c.CommandTimeout))
	}
	if c.UploadTimeout < 0 {
		errs = append(errs, fmt.Errorf("uploadTimeout must not be negative, got %s", c.UploadTimeout))
	}
	if c.GitHub.Repository != "" && c.GitHub.Token == "" &&
		(c.GitHub.AppID == 0 || c.GitHub.InstallationID == 0 || c.GitHub.PrivateKey == "") {
		errs = append(errs, errors.New("github.repository requires github.token or github.appId, github.installationId and github.privateKey"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with every secret masked, suitable for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redactedSecret
	}
	c.Repository.Password = mask(c.Repository.Password)
	c.GitHub.Token = mask(c.GitHub.Token)
	c.GitHub.PrivateKey = mask(c.GitHub.PrivateKey)
	return c
}

// Secrets returns the configured secret values that must never appear in
// logged command text.
func (c Config) Secrets() []string {
	var s []string
	for _, v := range []string{c.Repository.Password, c.GitHub.Token} {
		if v != "" {
			s = append(s, v)
		}
	}
	return s
}

// AddFlags registers one flag per key on fs, named by FlagName and
// defaulting to the key's default value so that an unset flag never hides a
// value from the config file or the environment. usage maps keys to help
// text.
func AddFlags(fs *pflag.FlagSet, usage map[string]string) {
	for key, help := range usage {
		name := FlagName(key)
		switch d := defaults[key].(type) {
		case bool:
			fs.Bool(name, d, help)
		case time.Duration:
			fs.Duration(name, d, help)
		case int:
			fs.Int64(name, int64(d), help)
		case string:
			fs.String(name, d, help)
		default:
			panic(fmt.Sprintf("config: no flag type for key %q", key))
		}
	}
}

// EnvName maps a config key to its environment variable, e.g.
// "git.requireCleanWorkingDirectory" to HELM_RELEASE_GIT_REQUIRE_CLEAN_WORKING_DIRECTORY.
func EnvName(key string) string {
	return envPrefix + "_" + strings.ToUpper(splitWords(key, "_"))
}

// FlagName maps a config key to its flag, e.g. "chartPath" to "chart-path".
func FlagName(key string) string {
	return strings.ToLower(splitWords(key, "-"))
}

func splitWords(key, sep string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '.':
			b.WriteString(sep)
		case unicode.IsUpper(r) && i > 0 && key[i-1] != '.':
			b.WriteString(sep)
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func readConfigFile(v *viper.Viper, explicitPath string) error {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && explicitPath == "" {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}
