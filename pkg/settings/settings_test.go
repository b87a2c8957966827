package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/scribe/errors"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yml"))
	require.NoError(t, err)
	assert.Empty(t, s.Keys())
	assert.False(t, s.Bool(KeySetupComplete, false))
	assert.Equal(t, "base", s.String(KeySpeechToTextModel, "base"))
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "settings.ini"))
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidInput, errors.GetKind(err))
}

func TestFormats(t *testing.T) {
	cases := map[string]string{
		"settings.yml":  "setup_complete: true\nspeech_to_text_model: small\nui:\n  theme: dark\n",
		"settings.toml": "setup_complete = true\nspeech_to_text_model = \"small\"\n[ui]\ntheme = \"dark\"\n",
		"settings.json": `{"setup_complete": true, "speech_to_text_model": "small", "ui": {"theme": "dark"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			s, err := Open(path)
			require.NoError(t, err)
			assert.True(t, s.Bool(KeySetupComplete, false))
			assert.Equal(t, "small", s.String(KeySpeechToTextModel, ""))
			assert.Equal(t, "dark", s.String("ui.theme", ""))
			assert.Equal(t, []string{"setup_complete", "speech_to_text_model", "ui.theme"}, s.Keys())
		})
	}
}

func TestOpen_BadContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Open(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidInput, errors.GetKind(err))
}

func TestSet_PersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yml")
	s, err := Open(path)
	require.NoError(t, err)

	changes, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Set(KeySetupComplete, true))
	require.NoError(t, s.Set("ui.theme", "light"))

	assert.Equal(t, Change{Key: KeySetupComplete, Value: true}, <-changes)
	assert.Equal(t, Change{Key: "ui.theme", Value: "light"}, <-changes)

	// Same value again is not a change.
	require.NoError(t, s.Set(KeySetupComplete, true))
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	default:
	}

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.True(t, reopened.Bool(KeySetupComplete, false))
	assert.Equal(t, "light", reopened.String("ui.theme", ""))
}

func TestSet_NilRemovesKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	require.NoError(t, s.Set(KeySpeechToTextModel, "tiny"))

	changes, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Set(KeySpeechToTextModel, nil))

	assert.Equal(t, Change{Key: KeySpeechToTextModel}, <-changes)
	_, ok := s.Get(KeySpeechToTextModel)
	assert.False(t, ok)
}

func TestSet_EmptyKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yml"))
	require.NoError(t, err)
	assert.Equal(t, errors.KindInvalidInput, errors.GetKind(s.Set("", 1)))
}

func TestDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("recorder:\n  sample_rate: \"16000\"\n  silence: 2s\n  enabled: \"true\"\n"), 0o644))
	s, err := Open(path)
	require.NoError(t, err)

	var rec struct {
		SampleRate int           `yaml:"sample_rate"`
		Silence    time.Duration `yaml:"silence"`
		Enabled    bool          `yaml:"enabled"`
	}
	require.NoError(t, s.Decode("recorder", &rec))
	assert.Equal(t, 16000, rec.SampleRate)
	assert.Equal(t, 2*time.Second, rec.Silence)
	assert.True(t, rec.Enabled)

	err = s.Decode("missing", &rec)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestSubscribe_CancelIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yml"))
	require.NoError(t, err)

	changes, cancel := s.Subscribe()
	cancel()
	cancel()
	_, open := <-changes
	assert.False(t, open)
	require.NoError(t, s.Set("k", "v"))
}

func TestWatch_ReloadsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("setup_complete: false\n"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	changes, cancel := s.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	require.NoError(t, s.Watch(ctx, 20*time.Millisecond))

	require.NoError(t, os.WriteFile(path, []byte("setup_complete: true\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c == (Change{Key: KeySetupComplete, Value: true}) {
				assert.True(t, s.Bool(KeySetupComplete, false))
				return
			}
		case <-deadline:
			t.Fatal("no change observed")
		}
	}
}

