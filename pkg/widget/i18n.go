package widget

import "strings"

const (
	// LanguageSwedish, LanguageEnglish, and LanguageArabic are the supported
	// interface languages. Detection falls back to English.
	LanguageSwedish = "sv"
	LanguageEnglish = "en"
	LanguageArabic  = "ar"

	DefaultLanguage = LanguageEnglish
)

// Translations holds the localized interface strings for one language.
type Translations struct {
	Greeting       string
	Fallback       string
	ConsentPrompt  string
	ConsentAccept  string
	ConsentDecline string
	InputHint      string
	NoDataFound    string
	DataDeleted    string
	DeleteError    string
	ConsentRevoked string
	FeedbackThanks string
	NewChatLabel   string
}

var translationsByLanguage = map[string]Translations{
	LanguageEnglish: {
		Greeting:       "Hi! How can I help you today?",
		Fallback:       "Sorry, something went wrong. Please try again in a moment.",
		ConsentPrompt:  "This chat stores your messages to answer your questions. Do you agree?",
		ConsentAccept:  "I agree",
		ConsentDecline: "No thanks",
		InputHint:      "Type your question…",
		NoDataFound:    "We have no stored data for this session.",
		DataDeleted:    "Your data has been deleted.",
		DeleteError:    "Something went wrong. Your data was not deleted, please try again.",
		ConsentRevoked: "Your consent has been withdrawn.",
		FeedbackThanks: "Thanks for your feedback!",
		NewChatLabel:   "New conversation",
	},
	LanguageSwedish: {
		Greeting:       "Hej! Hur kan jag hjälpa dig idag?",
		Fallback:       "Tyvärr gick något fel. Försök igen om en stund.",
		ConsentPrompt:  "Chatten sparar dina meddelanden för att kunna svara på dina frågor. Godkänner du det?",
		ConsentAccept:  "Jag godkänner",
		ConsentDecline: "Nej tack",
		InputHint:      "Skriv din fråga…",
		NoDataFound:    "Vi har ingen sparad data för den här sessionen.",
		DataDeleted:    "Din data har raderats.",
		DeleteError:    "Något gick fel. Din data raderades inte, försök igen.",
		ConsentRevoked: "Ditt samtycke har återkallats.",
		FeedbackThanks: "Tack för din feedback!",
		NewChatLabel:   "Ny konversation",
	},
	LanguageArabic: {
		Greeting:       "مرحباً! كيف يمكنني مساعدتك اليوم؟",
		Fallback:       "عذراً، حدث خطأ ما. يرجى المحاولة مرة أخرى بعد قليل.",
		ConsentPrompt:  "تحفظ هذه الدردشة رسائلك للإجابة على أسئلتك. هل توافق؟",
		ConsentAccept:  "أوافق",
		ConsentDecline: "لا، شكراً",
		InputHint:      "اكتب سؤالك…",
		NoDataFound:    "لا توجد بيانات محفوظة لهذه الجلسة.",
		DataDeleted:    "تم حذف بياناتك.",
		DeleteError:    "حدث خطأ ما. لم يتم حذف بياناتك، حاول مرة أخرى.",
		ConsentRevoked: "تم سحب موافقتك.",
		FeedbackThanks: "شكراً على ملاحظاتك!",
		NewChatLabel:   "محادثة جديدة",
	},
}

// NormalizeLanguage reduces a locale tag such as "sv-SE" to a supported language
// code, falling back to the default for unknown values.
func NormalizeLanguage(rawLanguage string) string {
	normalized := strings.ToLower(strings.TrimSpace(rawLanguage))
	if separatorIndex := strings.IndexAny(normalized, "-_"); separatorIndex > 0 {
		normalized = normalized[:separatorIndex]
	}
	if _, supported := translationsByLanguage[normalized]; supported {
		return normalized
	}
	return DefaultLanguage
}

// TranslationsFor returns the interface strings for a language code.
func TranslationsFor(language string) Translations {
	return translationsByLanguage[NormalizeLanguage(language)]
}

// IsRightToLeft reports whether the language renders right to left. Layout
// direction follows detected language only, never server configuration.
func IsRightToLeft(language string) bool {
	return NormalizeLanguage(language) == LanguageArabic
}
