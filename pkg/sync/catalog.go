package sync

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/errors"
	"github.com/grovetools/scribe/logging"
	"github.com/grovetools/scribe/pkg/gateway"
	"github.com/grovetools/scribe/pkg/models"
)

// Backend commands that describe what the backend can do.
const (
	CmdGetSpeechToTextModels   = "get_speech_to_text_models"
	CmdGetTextGenerationModels = "get_text_generation_models"
	CmdSetTextGenerationAPIKey = "set_text_generation_api_key"
	CmdGetLanguages            = "get_languages"
)

// Catalog lists the models and languages the backend offers during setup.
// Nothing is cached.
type Catalog struct {
	gw  *gateway.Gateway
	log *logrus.Entry
}

// NewCatalog returns a Catalog issuing commands through d.Gateway.
func NewCatalog(d Deps) *Catalog {
	return &Catalog{gw: d.Gateway, log: logging.NewLogger("catalog")}
}

// SpeechToTextModels lists the downloadable transcription models with their
// sizes in bytes. Entries with an unknown model name are skipped.
func (c *Catalog) SpeechToTextModels(ctx context.Context) ([]models.SpeechToTextModelInfo, error) {
	infos, err := gateway.Call[[]models.SpeechToTextModelInfo](ctx, c.gw, CmdGetSpeechToTextModels, nil)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if !info.Model.IsValid() {
			c.log.WithField("model", info.Model).Debug("Skipping unknown speech-to-text model")
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// TextGenerationModels lists the models of the configured text generation
// provider.
func (c *Catalog) TextGenerationModels(ctx context.Context) ([]models.TextGenerationModel, error) {
	return gateway.Call[[]models.TextGenerationModel](ctx, c.gw, CmdGetTextGenerationModels, nil)
}

// SetTextGenerationAPIKey stores apiKey for provider on the backend. It
// returns whether the provider accepted the key.
func (c *Catalog) SetTextGenerationAPIKey(ctx context.Context, provider models.TextGenerationProvider, apiKey string) (bool, error) {
	if provider == "" {
		return false, errors.InvalidInput("provider", "empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return false, errors.InvalidInput("apiKey", "empty")
	}
	valid, err := gateway.Call[bool](ctx, c.gw, CmdSetTextGenerationAPIKey, map[string]string{
		"provider": string(provider),
		"apiKey":   apiKey,
	})
	if err != nil {
		return false, err
	}
	c.log.WithFields(logrus.Fields{"provider": provider, "valid": valid}).Debug("API key stored")
	return valid, nil
}

// Languages lists the languages a recording can be summarized in.
func (c *Catalog) Languages(ctx context.Context) ([]models.LanguageInfo, error) {
	return gateway.Call[[]models.LanguageInfo](ctx, c.gw, CmdGetLanguages, nil)
}
