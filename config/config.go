// Package config loads the kernel parameters from a configuration file and
// the environment.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/flow-kernel/kernel"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

// EnvPrefix prefixes the environment variables overriding configuration
// values, e.g. KERNEL_MAX_CALL_DEPTH or KERNEL_TRACK_MAX_VALUE_SIZE.
const EnvPrefix = "KERNEL"

const (
	keyMaxCallDepth        = "max-call-depth"
	keyCostLimit           = "cost-limit"
	keyDirectAccess        = "direct-access"
	keyNativePackages      = "native-packages"
	keyDroppableBlueprints = "droppable-blueprints"
	keyMaxKeySize          = "track.max-key-size"
	keyMaxValueSize        = "track.max-value-size"
	keyMaxInteractionSize  = "track.max-interaction-size"
)

// DroppableBlueprint names the function dropping nodes of a blueprint that
// are left over when a frame returns.
type DroppableBlueprint struct {
	BlueprintName string `mapstructure:"blueprint"`
	Function      string `mapstructure:"function"`
}

type TrackConfig struct {
	MaxKeySize         uint64 `mapstructure:"max-key-size"`
	MaxValueSize       uint64 `mapstructure:"max-value-size"`
	MaxInteractionSize uint64 `mapstructure:"max-interaction-size"`
}

// KernelConfig is the file representation of kernel.Parameters.
type KernelConfig struct {
	MaxCallDepth        int                       `mapstructure:"max-call-depth"`
	CostLimit           uint                      `mapstructure:"cost-limit"`
	DirectAccess        []kernel.DirectAccessRule `mapstructure:"direct-access"`
	NativePackages      []substate.NodeId         `mapstructure:"native-packages"`
	DroppableBlueprints []DroppableBlueprint      `mapstructure:"droppable-blueprints"`
	Track               TrackConfig               `mapstructure:"track"`
}

// DefaultConfig returns the configuration matching kernel.DefaultParameters.
func DefaultConfig() KernelConfig {
	params := kernel.DefaultParameters()

	droppable := make([]DroppableBlueprint, 0, len(params.DroppableBlueprints))
	for name, function := range params.DroppableBlueprints {
		droppable = append(droppable, DroppableBlueprint{BlueprintName: name, Function: function})
	}

	return KernelConfig{
		MaxCallDepth:        params.MaxCallDepth,
		CostLimit:           params.CostLimit,
		DirectAccess:        append([]kernel.DirectAccessRule(nil), params.DirectAccess...),
		NativePackages:      append([]substate.NodeId(nil), params.NativePackages...),
		DroppableBlueprints: droppable,
		Track: TrackConfig{
			MaxKeySize:         params.Track.MaxKeySizeAllowed,
			MaxValueSize:       params.Track.MaxValueSizeAllowed,
			MaxInteractionSize: params.Track.MaxInteractionSizeAllowed,
		},
	}
}

// Load reads the configuration file at path, YAML, TOML or JSON depending on
// its extension, and applies environment overrides. Values missing from both
// keep their defaults. An empty path only reads the environment.
func Load(path string) (KernelConfig, error) {
	conf := viper.New()
	return load(conf, path)
}

// InitFlags registers the command line flags overriding configuration values.
func InitFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()
	flags.Int(keyMaxCallDepth, defaults.MaxCallDepth, "maximum depth of nested invocations")
	flags.Uint(keyCostLimit, defaults.CostLimit, "cost limit of a transaction")
}

// LoadWithFlags is Load with the flags registered by InitFlags taking
// precedence over the environment, when set.
func LoadWithFlags(path string, flags *pflag.FlagSet) (KernelConfig, error) {
	conf := viper.New()
	for _, key := range []string{keyMaxCallDepth, keyCostLimit} {
		flag := flags.Lookup(key)
		if flag == nil {
			continue
		}
		err := conf.BindPFlag(key, flag)
		if err != nil {
			return KernelConfig{}, fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}
	return load(conf, path)
}

func load(conf *viper.Viper, path string) (KernelConfig, error) {
	cfg := DefaultConfig()

	// scalar values need defaults for the environment overrides to be seen
	conf.SetDefault(keyMaxCallDepth, cfg.MaxCallDepth)
	conf.SetDefault(keyCostLimit, cfg.CostLimit)
	conf.SetDefault(keyMaxKeySize, cfg.Track.MaxKeySize)
	conf.SetDefault(keyMaxValueSize, cfg.Track.MaxValueSize)
	conf.SetDefault(keyMaxInteractionSize, cfg.Track.MaxInteractionSize)

	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	conf.AutomaticEnv()
	err := conf.BindEnv(keyNativePackages)
	if err != nil {
		return KernelConfig{}, fmt.Errorf("failed to bind environment: %w", err)
	}

	if path != "" {
		conf.SetConfigFile(path)
		err = conf.ReadInConfig()
		if err != nil {
			return KernelConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	settings := make(map[string]interface{})
	for _, key := range conf.AllKeys() {
		setNested(settings, strings.Split(key, "."), conf.Get(key))
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToNodeIdHookFunc(),
			stringToSizeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           &cfg,
	})
	if err != nil {
		return KernelConfig{}, fmt.Errorf("failed to create config decoder: %w", err)
	}

	err = decoder.Decode(settings)
	if err != nil {
		return KernelConfig{}, fmt.Errorf("failed to decode kernel configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return KernelConfig{}, err
	}
	return cfg, nil
}

func setNested(settings map[string]interface{}, path []string, value interface{}) {
	for _, key := range path[:len(path)-1] {
		next, ok := settings[key].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			settings[key] = next
		}
		settings = next
	}
	settings[path[len(path)-1]] = value
}

// stringToNodeIdHookFunc decodes hex strings into node ids.
func stringToNodeIdHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(substate.NodeId{}) {
			return data, nil
		}
		return substate.HexToNodeId(data.(string))
	}
}

// stringToSizeHookFunc decodes sizes such as "64KiB" or "1MB" into byte
// counts. Units are binary.
func stringToSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Uint64 {
			return data, nil
		}
		size, err := units.RAMInBytes(data.(string))
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, fmt.Errorf("negative size %q", data)
		}
		return uint64(size), nil
	}
}

// Validate checks that the configuration describes usable parameters.
func (c KernelConfig) Validate() error {
	if c.MaxCallDepth <= 0 {
		return NewInvalidConfigErrorf(keyMaxCallDepth, "must be positive, got %d", c.MaxCallDepth)
	}
	if c.CostLimit == 0 {
		return NewInvalidConfigErrorf(keyCostLimit, "must be positive")
	}
	for i, rule := range c.DirectAccess {
		if rule.BlueprintName == "" || rule.Ident == "" {
			return NewInvalidConfigErrorf(keyDirectAccess, "rule %d needs a blueprint and an ident", i)
		}
	}
	for _, id := range c.NativePackages {
		if id.EntityType() != substate.EntityTypeGlobalPackage {
			return NewInvalidConfigErrorf(keyNativePackages, "%s is not a package address", id)
		}
	}
	seen := make(map[string]struct{}, len(c.DroppableBlueprints))
	for i, droppable := range c.DroppableBlueprints {
		if droppable.BlueprintName == "" || droppable.Function == "" {
			return NewInvalidConfigErrorf(keyDroppableBlueprints, "entry %d needs a blueprint and a function", i)
		}
		if _, ok := seen[droppable.BlueprintName]; ok {
			return NewInvalidConfigErrorf(keyDroppableBlueprints, "blueprint %s is listed twice", droppable.BlueprintName)
		}
		seen[droppable.BlueprintName] = struct{}{}
	}
	if c.Track.MaxKeySize == 0 || c.Track.MaxValueSize == 0 || c.Track.MaxInteractionSize == 0 {
		return NewInvalidConfigErrorf("track", "size limits must be positive")
	}
	return nil
}

// Parameters converts the configuration into kernel parameters.
func (c KernelConfig) Parameters() kernel.Parameters {
	params := kernel.DefaultParameters().
		WithMaxCallDepth(c.MaxCallDepth).
		WithCostLimit(c.CostLimit).
		WithDirectAccessRules(c.DirectAccess...).
		WithNativePackages(c.NativePackages...).
		WithTrackParameters(track.DefaultParameters().
			WithMaxKeySizeAllowed(c.Track.MaxKeySize).
			WithMaxValueSizeAllowed(c.Track.MaxValueSize).
			WithMaxInteractionSizeAllowed(c.Track.MaxInteractionSize))

	params.DroppableBlueprints = make(map[string]string, len(c.DroppableBlueprints))
	for _, droppable := range c.DroppableBlueprints {
		params = params.WithDroppableBlueprint(droppable.BlueprintName, droppable.Function)
	}
	return params
}
