package models

// SpeechToTextModel names a downloadable transcription model. The selected one
// is stored in the speech_to_text_model setting.
type SpeechToTextModel string

const (
	ModelTiny       SpeechToTextModel = "tiny"
	ModelBase       SpeechToTextModel = "base"
	ModelSmall      SpeechToTextModel = "small"
	ModelMedium     SpeechToTextModel = "medium"
	ModelLargeTurbo SpeechToTextModel = "large-turbo"
	ModelLarge      SpeechToTextModel = "large"
)

// SpeechToTextModels lists every model the backend can download, smallest first.
var SpeechToTextModels = []SpeechToTextModel{
	ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLargeTurbo, ModelLarge,
}

// IsValid reports whether m is a known model.
func (m SpeechToTextModel) IsValid() bool {
	for _, known := range SpeechToTextModels {
		if m == known {
			return true
		}
	}
	return false
}

// SpeechToTextModelInfo is one entry of get_speech_to_text_models.
type SpeechToTextModelInfo struct {
	Model SpeechToTextModel `json:"model"`
	Size  int64             `json:"size"`
}

// TextGenerationProvider is a hosted text generation service.
type TextGenerationProvider string

const ProviderGemini TextGenerationProvider = "gemini"

// TextGenerationModel is one entry of get_text_generation_models.
type TextGenerationModel struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Provider TextGenerationProvider `json:"provider,omitempty"`
}

// LanguageInfo is one entry of get_languages. Code is a BCP 47 tag such as
// "en-US".
type LanguageInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}
