package realtime

import "strings"

// DefaultLanguage is used when a request names no language or an unknown one.
const DefaultLanguage = "ko"

// Preset is the voice and default instructions used for one language.
type Preset struct {
	Language     string
	Voice        string
	Instructions string
}

var presets = map[string]Preset{
	"ko": {
		Language: "ko",
		Voice:    "coral",
		Instructions: "당신은 친절한 한국어 대화 상대입니다. 사용자의 말을 끝까지 듣고, " +
			"짧고 자연스러운 한국어 구어체로 대답하세요. 이해하지 못한 부분은 다시 물어보세요.",
	},
	"en": {
		Language: "en",
		Voice:    "alloy",
		Instructions: "You are a friendly English conversation partner. Listen to the user, " +
			"reply in short, natural spoken English, and ask a follow-up question to keep the conversation going.",
	},
	"ja": {
		Language: "ja",
		Voice:    "sage",
		Instructions: "あなたは親切な日本語の会話相手です。ユーザーの話をよく聞き、" +
			"短く自然な話し言葉の日本語で答えてください。",
	},
}

// PresetFor returns the preset for lang, falling back to DefaultLanguage.
func PresetFor(lang string) Preset {
	return PresetOrDefault(lang, DefaultLanguage)
}

// PresetOrDefault returns the preset for lang, then for fallback, then for DefaultLanguage.
func PresetOrDefault(lang, fallback string) Preset {
	for _, l := range []string{lang, fallback} {
		if p, ok := presets[strings.ToLower(strings.TrimSpace(l))]; ok {
			return p
		}
	}
	return presets[DefaultLanguage]
}

// Languages lists the languages that have a preset.
func Languages() []string {
	return []string{"en", "ja", "ko"}
}
