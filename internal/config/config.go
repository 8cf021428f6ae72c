package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RWESTUDY_ALPHA.
const EnvPrefix = "RWESTUDY"

// Global configuration structure.
type Global struct {
	// Two-arm comparison
	PreferredArm  string  `mapstructure:"preferred_arm" yaml:"preferred_arm" validate:"required"`
	ComparatorArm string  `mapstructure:"comparator_arm" yaml:"comparator_arm" validate:"required,nefield=PreferredArm"`
	Alpha         float64 `mapstructure:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
	EqualVariance bool    `mapstructure:"equal_variance" yaml:"equal_variance"`

	AdherenceThreshold float64  `mapstructure:"adherence_threshold" yaml:"adherence_threshold" validate:"gt=0,lte=1"`
	WatchList          []string `mapstructure:"watch_list" yaml:"watch_list" validate:"dive,required"`

	// Clustering
	ClusterK       int   `mapstructure:"cluster_k" yaml:"cluster_k" validate:"gte=1"`
	ClusterSeed    int64 `mapstructure:"cluster_seed" yaml:"cluster_seed"`
	ClusterNInit   int   `mapstructure:"cluster_n_init" yaml:"cluster_n_init" validate:"gte=1"`
	ClusterMaxIter int   `mapstructure:"cluster_max_iter" yaml:"cluster_max_iter" validate:"gte=1"`

	OutputFormat    string `mapstructure:"output_format" yaml:"output_format" validate:"oneof=markdown json yaml table"`
	LogLevel        string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	PromptMaxTokens int    `mapstructure:"prompt_max_tokens" yaml:"prompt_max_tokens" validate:"gte=0"`
	// Delimiter forces the input field separator; empty means sniff from the file.
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" validate:"max=1"`
}

// Defaults returns the built-in configuration.
func Defaults() Global {
	return Global{
		PreferredArm:       "Mounjaro",
		ComparatorArm:      "LifestyleOnly",
		Alpha:              0.05,
		EqualVariance:      true,
		AdherenceThreshold: 0.8,
		WatchList: []string{
			"Type 2 Diabetes", "Hypertension", "Sleep Apnea",
			"Cardiac Disease", "High Cholesterol", "Obesity", "PCOS",
		},
		ClusterK:        4,
		ClusterSeed:     42,
		ClusterNInit:    10,
		ClusterMaxIter:  300,
		OutputFormat:    "markdown",
		LogLevel:        "info",
		PromptMaxTokens: 8000,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports every invalid field, named by its config key.
func (c *Global) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Set assigns one key from its string form, as used by `config set`.
func (c *Global) Set(key, val string) error {
	switch key {
	case "preferred_arm":
		c.PreferredArm = val
	case "comparator_arm":
		c.ComparatorArm = val
	case "alpha", "adherence_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %w", key, err)
		}
		if key == "alpha" {
			c.Alpha = f
		} else {
			c.AdherenceThreshold = f
		}
	case "equal_variance":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for equal_variance: %w", err)
		}
		c.EqualVariance = b
	case "watch_list":
		var list []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		c.WatchList = list
	case "cluster_k", "cluster_n_init", "cluster_max_iter", "prompt_max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %w", key, err)
		}
		switch key {
		case "cluster_k":
			c.ClusterK = i
		case "cluster_n_init":
			c.ClusterNInit = i
		case "cluster_max_iter":
			c.ClusterMaxIter = i
		default:
			c.PromptMaxTokens = i
		}
	case "cluster_seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for cluster_seed: %w", err)
		}
		c.ClusterSeed = i
	case "output_format":
		c.OutputFormat = strings.ToLower(val)
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "delimiter":
		if strings.EqualFold(val, "tab") {
			val = "\t"
		}
		c.Delimiter = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return c.Validate()
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".rwestudy"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.rwestudy/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from a .env file, the environment, the config
// file and defaults, then validates it.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("preferred_arm", d.PreferredArm)
	v.SetDefault("comparator_arm", d.ComparatorArm)
	v.SetDefault("alpha", d.Alpha)
	v.SetDefault("equal_variance", d.EqualVariance)
	v.SetDefault("adherence_threshold", d.AdherenceThreshold)
	v.SetDefault("watch_list", d.WatchList)
	v.SetDefault("cluster_k", d.ClusterK)
	v.SetDefault("cluster_seed", d.ClusterSeed)
	v.SetDefault("cluster_n_init", d.ClusterNInit)
	v.SetDefault("cluster_max_iter", d.ClusterMaxIter)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("prompt_max_tokens", d.PromptMaxTokens)
	v.SetDefault("delimiter", d.Delimiter)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		var nf viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
