package workspace

import (
	"path"
	"sort"
	"strings"

	"querysync/internal/core/errors"
)

// LanguageClass groups the build rule kinds and source extensions that make
// up one language in the project model.
type LanguageClass string

const (
	LanguageJava   LanguageClass = "java"
	LanguageKotlin LanguageClass = "kotlin"
)

type languageSpec struct {
	ruleKinds  []string
	extensions []string
}

var languageSpecs = map[LanguageClass]languageSpec{
	LanguageJava: {
		ruleKinds: []string{
			"android_binary",
			"android_library",
			"android_local_test",
			"java_binary",
			"java_library",
			"java_test",
		},
		extensions: []string{".java"},
	},
	LanguageKotlin: {
		ruleKinds: []string{
			"kt_android_library",
			"kt_jvm_binary",
			"kt_jvm_library",
			"kt_jvm_test",
		},
		extensions: []string{".kt"},
	},
}

// ParseLanguageClass accepts case-insensitive language names.
func ParseLanguageClass(raw string) (LanguageClass, error) {
	lang := LanguageClass(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := languageSpecs[lang]; !ok {
		return "", errors.Newf(errors.CodeValidationError, "unsupported language class %q (supported: %s)", raw, strings.Join(SupportedLanguages(), ", "))
	}
	return lang, nil
}

func SupportedLanguages() []string {
	out := make([]string, 0, len(languageSpecs))
	for lang := range languageSpecs {
		out = append(out, string(lang))
	}
	sort.Strings(out)
	return out
}

// RuleKinds returns the build rule kinds belonging to the language.
func (l LanguageClass) RuleKinds() []string {
	return append([]string(nil), languageSpecs[l].ruleKinds...)
}

func (l LanguageClass) HasRuleKind(kind string) bool {
	for _, k := range languageSpecs[l].ruleKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsSource reports whether filePath has one of the language's source extensions.
func (l LanguageClass) IsSource(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	for _, e := range languageSpecs[l].extensions {
		if e == ext {
			return true
		}
	}
	return false
}
