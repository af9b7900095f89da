package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Language 描述用户界面提示使用的语言。
// 使用简短的语言代码（如 zh、en），便于在配置中传递。
type Language string

const (
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"

	// DefaultLanguage 未配置时的默认语言。
	DefaultLanguage = LanguageEnglish
)

var supported = []language.Tag{language.English, language.SimplifiedChinese}

var matcher = language.NewMatcher(supported)

// Normalize 将用户输入的语言值转换为统一的语言代码。
// 空字符串回退到默认语言；无法识别的代码原样保留。
func Normalize(value string) Language {
	lang := strings.ToLower(strings.TrimSpace(value))
	switch lang {
	case "":
		return DefaultLanguage
	case "zh", "zh-cn", "zh_cn", "zh-hans", "cn", "chinese", "中文":
		return LanguageChinese
	case "en", "en-us", "en_us", "en-gb", "english":
		return LanguageEnglish
	default:
		return Language(lang)
	}
}

// Code 返回规范化后的语言代码，空值回退到默认语言。
func (l Language) Code() string {
	return string(Normalize(string(l)))
}

// Tag 返回最接近的受支持语言标签，未知语言回退到英文。
func (l Language) Tag() language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(l.Code(), "_", "-"))
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// DisplayName 返回适合展示的语言名称。
// 已知语言返回标准名称，未知语言则直接返回原始代码。
func (l Language) DisplayName() string {
	switch Normalize(string(l)) {
	case LanguageChinese:
		return "中文"
	case LanguageEnglish:
		return "English"
	default:
		return strings.TrimSpace(string(l))
	}
}
