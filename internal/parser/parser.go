package parser

import "blockext/internal/models"

// SourceParser turns host source text into top-level statements and
// comments. A malformed file yields a *models.Error of kind HostParseError.
type SourceParser interface {
	ParseSource(code []byte) (*models.SourceFile, error)

	// Language returns the language name
	Language() string
}

// Language represents supported host languages
type Language string

const (
	LanguageJavaScript Language = "javascript"
)
