package confloader

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "FILELINK_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets flat "section.key" values applied after the
// environment.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fills target from every layer. target must be a pointer to a struct
// already holding the default values.
func (l *Loader) Load(target any) error {
	if err := l.LoadDefaults(target); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}
	if err := l.LoadFile(l.filePath); err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadDefaults loads the current field values of a koanf-tagged struct as
// the lowest layer.
func (l *Loader) LoadDefaults(target any) error {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("confloader: nil target")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("confloader: target must be a struct, got %s", v.Kind())
	}
	return l.k.Load(mapProvider(structToMap(v)), nil)
}

// structToMap converts koanf-tagged fields into nested maps. Durations are
// rendered as strings so they decode the same way file values do.
func structToMap(v reflect.Value) map[string]any {
	out := make(map[string]any)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := f.Tag.Get("koanf")
		if key == "" || key == "-" || !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		switch {
		case fv.Type() == reflect.TypeOf(time.Duration(0)):
			out[key] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			out[key] = structToMap(fv)
		default:
			out[key] = fv.Interface()
		}
	}
	return out
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads configuration from environment variables.
//
// FILELINK_SERVER_HTTP_ADDR -> server.http.addr
func (l *Loader) LoadEnv() error {
	known := make(map[string]string)
	for _, key := range l.k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}

	transform := func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		if key, ok := known[name]; ok {
			return key
		}
		return strings.ReplaceAll(name, "_", ".")
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap loads flat "section.key" values.
func (l *Loader) LoadMap(data map[string]any) error {
	nested := make(map[string]any)
	for k, v := range data {
		setPath(nested, strings.Split(k, "."), v)
	}
	if err := l.k.Load(mapProvider(nested), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

func setPath(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// Unmarshal decodes the merged configuration into target using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// String returns a string value by key.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Keys returns all configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
