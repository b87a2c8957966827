// Package settings is the opaque key/value store behind the onboarding and
// model-selection screens.
//
// Values live in a single file whose format follows its extension (.yml,
// .yaml, .toml or .json). Keys are dotted paths into the nested document.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
)

// Well-known keys.
const (
	KeySetupComplete     = "setup_complete"
	KeySpeechToTextModel = "speech_to_text_model"
)

// Change reports a key whose value differs after a Set or a reload. Value is
// nil when the key was removed.
type Change struct {
	Key   string
	Value interface{}
}

// Store is a file-backed settings provider. It is safe for concurrent use.
type Store struct {
	path   string
	format format
	log    *logrus.Entry

	mu          sync.RWMutex
	values      map[string]interface{}
	subscribers map[chan Change]struct{}
}

// Open loads path. A missing file is an empty store; it is created on the
// first Set.
func Open(path string) (*Store, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		path:        path,
		format:      f,
		log:         logging.NewLogger("settings").WithField("path", path),
		values:      map[string]interface{}{},
		subscribers: make(map[chan Change]struct{}),
	}
	values, err := s.read()
	if err != nil {
		return nil, err
	}
	s.values = values
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value at a dotted key.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.values, key)
}

// Bool returns the boolean at key, or def when absent or not a boolean.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// String returns the string at key, or def when absent or not a string.
func (s *Store) String(key, def string) string {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	str, ok := v.(string)
	if !ok {
		return def
	}
	return str
}

// Decode copies the value at key into out (a pointer) using mapstructure with
// weak typing, so "true" decodes into a bool.
func (s *Store) Decode(key string, out interface{}) error {
	v, ok := s.Get(key)
	if !ok {
		return errors.NotFound("setting " + key)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "yaml",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, errors.KindInvalidInput, "bad decode target")
	}
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.KindInvalidInput, "cannot decode setting "+key)
	}
	return nil
}

// Keys returns every leaf key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flat := map[string]interface{}{}
	flatten("", s.values, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores value at key and persists the file.
func (s *Store) Set(key string, value interface{}) error {
	if key == "" {
		return errors.InvalidInput("key", "empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := deepCopy(s.values)
	assign(next, key, value)
	if err := s.write(next); err != nil {
		return err
	}
	s.apply(next)
	return nil
}

// Reload re-reads the file and notifies subscribers of changed keys.
func (s *Store) Reload() error {
	values, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(values)
	return nil
}

// Subscribe returns a channel of changes. The cancel func is idempotent.
// Changes are dropped for a subscriber whose buffer is full.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 32)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

// apply must be called with mu held.
func (s *Store) apply(next map[string]interface{}) {
	before := map[string]interface{}{}
	after := map[string]interface{}{}
	flatten("", s.values, before)
	flatten("", next, after)
	s.values = next

	var changes []Change
	for k, v := range after {
		if old, ok := before[k]; !ok || !reflect.DeepEqual(old, v) {
			changes = append(changes, Change{Key: k, Value: v})
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			changes = append(changes, Change{Key: k})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })

	for _, c := range changes {
		s.log.WithField("key", c.Key).Debug("Setting changed")
		for ch := range s.subscribers {
			select {
			case ch <- c:
			default:
				s.log.WithField("key", c.Key).Warn("Settings subscriber is full, dropping change")
			}
		}
	}
}

func (s *Store) read() (map[string]interface{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, errors.IOError(err)
	}
	values, err := s.format.decode(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInvalidInput, "failed to parse settings").
			WithDetail("path", s.path)
	}
	return values, nil
}

func (s *Store) write(values map[string]interface{}) error {
	data, err := s.format.encode(values)
	if err != nil {
		return errors.Wrap(err, errors.KindInvalidInput, "failed to encode settings")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.IOError(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return errors.IOError(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.IOError(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.IOError(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.IOError(err)
	}
	return nil
}

type format string

const (
	formatYAML format = "yaml"
	formatTOML format = "toml"
	formatJSON format = "json"
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	case ".json":
		return formatJSON, nil
	}
	return "", errors.InvalidInput("settings.path", fmt.Sprintf("unsupported extension %q", filepath.Ext(path)))
}

func (f format) decode(data []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var err error
	switch f {
	case formatYAML:
		err = yaml.Unmarshal(data, &out)
	case formatTOML:
		err = toml.Unmarshal(data, &out)
	case formatJSON:
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, err
	}
	return normalize(out).(map[string]interface{}), nil
}

func (f format) encode(values map[string]interface{}) ([]byte, error) {
	switch f {
	case formatTOML:
		return toml.Marshal(values)
	case formatJSON:
		return json.MarshalIndent(values, "", "  ")
	default:
		return yaml.Marshal(values)
	}
}

// normalize converts numbers to a single representation per kind so values
// compare equal across formats (TOML gives int64, YAML int, JSON float64).
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = normalize(inner)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = normalize(inner)
		}
		return t
	case int:
		return int64(t)
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	}
	return v
}

func lookup(values map[string]interface{}, key string) (interface{}, bool) {
	var cur interface{} = values
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(values map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	cur := values
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[part] = next
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if value == nil {
		delete(cur, last)
		return
	}
	cur[last] = normalize(value)
}

func flatten(prefix string, values map[string]interface{}, out map[string]interface{}) {
	for k, v := range values {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := v.(map[string]interface{}); ok {
			flatten(key, m, out)
			continue
		}
		out[key] = v
	}
}

func deepCopy(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = deepCopy(m)
			continue
		}
		out[k] = v
	}
	return out
}
