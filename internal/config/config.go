package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"codeberg.org/mutker/brewctl/internal/errors"
)

const (
	DefaultLogLevel      = LogLevelWarning
	DefaultInterval      = 10 * time.Second
	MinInterval          = time.Second
	DefaultStartupDelay  = 5 * time.Second
	DefaultHistorySize   = 1440
	DefaultHTTPAddr      = ":8080"
	DefaultPIDFile       = "brewctl.pid"
	DefaultDBPath        = "/var/lib/brewctl/telemetry.db"
	DefaultBatchSize     = 60
	DefaultBatchTimeout  = time.Minute
	DefaultTopicPrefix   = "brewctl"
	DefaultClientID      = "brewctl"
	DefaultSetpoint      = 67.0
	DefaultRebootCommand = "sudo shutdown -r now"
	DefaultPoweroffCmd   = "sudo shutdown -P now"

	envPrefix  = "BREWCTL"
	configName = "config"
)

var defaultSearchDirs = []string{".", "/etc/brewctl"}

type Config struct {
	LogLevel     LogLevel      `mapstructure:"logLevel"`
	Debug        bool          `mapstructure:"debug"`
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startupDelay"`
	HistorySize  int           `mapstructure:"historySize"`
	PIDFile      string        `mapstructure:"pidFile"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	System    SystemConfig    `mapstructure:"system"`

	Connections []string `mapstructure:"connections"`

	Sensors     []Component        `mapstructure:"-"`
	Actors      []Component        `mapstructure:"-"`
	Extensions  []Component        `mapstructure:"-"`
	Controllers []ControllerConfig `mapstructure:"-"`
	Rigs        []RigConfig        `mapstructure:"-"`

	// ConfigFile is the file that was read, empty when running on defaults.
	ConfigFile string `mapstructure:"-"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DBPath       string        `mapstructure:"dbPath"`
	BatchSize    int           `mapstructure:"batchSize"`
	BatchTimeout time.Duration `mapstructure:"batchTimeout"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"clientId"`
	TopicPrefix string `mapstructure:"topicPrefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type SystemConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	RebootCommand   string `mapstructure:"rebootCommand"`
	PoweroffCommand string `mapstructure:"poweroffCommand"`
}

// Component is one named sensor, actor or extension. Settings holds every key
// other than plugin and is decoded by the plugin itself.
type Component struct {
	Name     string
	Plugin   string
	Settings map[string]any
}

type ControllerConfig struct {
	Name            string         `mapstructure:"-"`
	Plugin          string         `mapstructure:"plugin"`
	Sensor          string         `mapstructure:"sensor"`
	Actor           string         `mapstructure:"actor"`
	BackupSensor    string         `mapstructure:"backupSensor"`
	Agitator        string         `mapstructure:"agitator"`
	LogicCoeffs     map[string]any `mapstructure:"logicCoeffs"`
	InitialSetpoint *float64       `mapstructure:"initialSetpoint"`
	InitialState    any            `mapstructure:"initialState"`
}

// Setpoint returns the configured initial setpoint or the default.
func (c ControllerConfig) Setpoint() float64 {
	if c.InitialSetpoint == nil {
		return DefaultSetpoint
	}
	return *c.InitialSetpoint
}

// Enabled reports whether the controller starts enabled. Unset means on.
func (c ControllerConfig) Enabled() (bool, error) {
	switch v := c.InitialState.(type) {
	case nil:
		return true, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}

	return cast.ToBoolE(c.InitialState)
}

type RigConfig struct {
	Name            string   `mapstructure:"-"`
	Controllers     []string `mapstructure:"controllers"`
	Primary         string   `mapstructure:"primary"`
	Secondary       string   `mapstructure:"secondary"`
	SecondaryPrefix string   `mapstructure:"secondaryPrefix"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:     DefaultLogLevel,
		Interval:     DefaultInterval,
		StartupDelay: DefaultStartupDelay,
		HistorySize:  DefaultHistorySize,
		PIDFile:      DefaultPIDFile,
		HTTP:         HTTPConfig{Addr: DefaultHTTPAddr},
		Telemetry: TelemetryConfig{
			DBPath:       DefaultDBPath,
			BatchSize:    DefaultBatchSize,
			BatchTimeout: DefaultBatchTimeout,
		},
		MQTT: MQTTConfig{
			ClientID:    DefaultClientID,
			TopicPrefix: DefaultTopicPrefix,
		},
		System: SystemConfig{
			RebootCommand:   DefaultRebootCommand,
			PoweroffCommand: DefaultPoweroffCmd,
		},
	}
}

// Load reads configuration from flags, environment and the config file, in
// that order of precedence, then validates it.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: envPrefix, searchDirs: defaultSearchDirs}
	for _, opt := range opts {
		opt(&o)
	}

	flags := pflag.NewFlagSet("brewctl", pflag.ContinueOnError)
	flags.String("config", "", "Path to config file")
	flags.String("log-level", "", "Log level (debug, info, warning, error)")
	flags.String("http", "", "HTTP listen address, empty to keep the configured value")
	flags.Bool("debug", false, "Enable debug logging")
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{"logLevel": "log-level", "http.addr": "http", "debug": "debug"} {
		f := flags.Lookup(flag)
		if !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	path := o.configPath
	if f := flags.Lookup("config"); f.Changed {
		path = f.Value.String()
	} else if env := os.Getenv(o.envPrefix + "_CONFIG"); path == "" && env != "" {
		path = env
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		for _, dir := range o.searchDirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		cfg.LogLevel = LogLevelDebug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("logLevel", string(d.LogLevel))
	v.SetDefault("debug", false)
	v.SetDefault("interval", d.Interval)
	v.SetDefault("startupDelay", d.StartupDelay)
	v.SetDefault("historySize", d.HistorySize)
	v.SetDefault("pidFile", d.PIDFile)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dbPath", d.Telemetry.DBPath)
	v.SetDefault("telemetry.batchSize", d.Telemetry.BatchSize)
	v.SetDefault("telemetry.batchTimeout", d.Telemetry.BatchTimeout)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.clientId", d.MQTT.ClientID)
	v.SetDefault("mqtt.topicPrefix", d.MQTT.TopicPrefix)
	v.SetDefault("system.enabled", false)
	v.SetDefault("system.rebootCommand", d.System.RebootCommand)
	v.SetDefault("system.poweroffCommand", d.System.PoweroffCommand)
}

// sections holds the component lists. They are read straight from the file
// because component names are case-sensitive and viper folds key case.
type sections struct {
	Sensors     []map[string]any `yaml:"sensors"`
	Actors      []map[string]any `yaml:"actors"`
	Extensions  []map[string]any `yaml:"extensions"`
	Controllers []map[string]any `yaml:"controllers"`
	Rigs        []map[string]any `yaml:"rigs"`
}

func decode(v *viper.Viper) (*Config, error) {
	errFactory := errors.New()

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if cfg.ConfigFile == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	var sec sections
	if err := yaml.Unmarshal(raw, &sec); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if cfg.Sensors, err = components(sec.Sensors, "sensors"); err != nil {
		return nil, err
	}
	if cfg.Actors, err = components(sec.Actors, "actors"); err != nil {
		return nil, err
	}
	if cfg.Extensions, err = components(sec.Extensions, "extensions"); err != nil {
		return nil, err
	}

	controllers, err := namedMaps(sec.Controllers, "controllers")
	if err != nil {
		return nil, err
	}
	for _, nm := range controllers {
		var cc ControllerConfig
		if err := decodeMap(nm.settings, &cc); err != nil {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, "controllers."+nm.name+": "+err.Error())
		}
		cc.Name = nm.name
		cfg.Controllers = append(cfg.Controllers, cc)
	}

	rigs, err := namedMaps(sec.Rigs, "rigs")
	if err != nil {
		return nil, err
	}
	for _, nm := range rigs {
		var rc RigConfig
		if err := decodeMap(nm.settings, &rc); err != nil {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, "rigs."+nm.name+": "+err.Error())
		}
		rc.Name = nm.name
		cfg.Rigs = append(cfg.Rigs, rc)
	}

	return cfg, nil
}

type namedMap struct {
	name     string
	settings map[string]any
}

// namedMaps flattens the "- Name: {...}" list shape used for components.
func namedMaps(items []map[string]any, section string) ([]namedMap, error) {
	errFactory := errors.New()

	var out []namedMap
	for _, entry := range items {
		names := make([]string, 0, len(entry))
		for name := range entry {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			body := entry[name]
			if body == nil {
				out = append(out, namedMap{name: name, settings: map[string]any{}})
				continue
			}
			settings, err := cast.ToStringMapE(body)
			if err != nil {
				return nil, errFactory.WithData(errors.ErrInvalidConfig, section+"."+name+" must be a map")
			}
			out = append(out, namedMap{name: name, settings: settings})
		}
	}

	return out, nil
}

func components(items []map[string]any, section string) ([]Component, error) {
	named, err := namedMaps(items, section)
	if err != nil {
		return nil, err
	}

	out := make([]Component, 0, len(named))
	for _, nm := range named {
		c := Component{Name: nm.name, Settings: map[string]any{}}
		for k, val := range nm.settings {
			if k == "plugin" {
				c.Plugin = cast.ToString(val)
				continue
			}
			c.Settings[k] = val
		}
		out = append(out, c)
	}

	return out, nil
}

func decodeMap(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}

	return dec.Decode(in)
}
