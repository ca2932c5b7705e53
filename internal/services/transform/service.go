// -----------------------------------------------------------------------
// Transform - canonical editor HTML rendered as markdown for export
// -----------------------------------------------------------------------

package transform

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/services/editor"
)

// Editor chrome stripped before conversion. Delete buttons would leak
// their glyph into the markdown, and caption spans duplicate the text
// already carried in the image alt attribute.
var (
	deleteButtonRe = regexp.MustCompile(`<button class="` + editor.ClassImageDelete + `"[^>]*>[^<]*</button>`)
	captionSpanRe  = regexp.MustCompile(`<span class="` + editor.ClassImageCaption + `">[^<]*</span>`)

	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Service converts canonical editor HTML into markdown
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts canonical editor HTML to markdown. baseURL is
// used for resolving relative image and link targets. Conversion failures
// fall back to stripped plain text rather than failing the export.
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if html == "" {
		return "", nil
	}

	cleaned := stripEditorChrome(html)

	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(cleaned)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return stripHTMLTags(cleaned), nil
	}

	trimmed := strings.TrimSpace(converted)
	if trimmed == "" && strings.TrimSpace(stripHTMLTags(cleaned)) != "" {
		s.logger.Warn().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, using fallback")
		return stripHTMLTags(cleaned), nil
	}

	s.logger.Debug().
		Int("html_length", len(html)).
		Int("markdown_length", len(trimmed)).
		Msg("HTML to markdown conversion successful")

	return trimmed, nil
}

// stripEditorChrome removes editing affordances that have no place in an
// exported document
func stripEditorChrome(html string) string {
	out := deleteButtonRe.ReplaceAllString(html, "")
	return captionSpanRe.ReplaceAllString(out, "")
}

// stripHTMLTags is the conversion fallback: tags removed, whitespace
// collapsed, common entities decoded
func stripHTMLTags(htmlStr string) string {
	stripped := tagRe.ReplaceAllString(htmlStr, "")
	cleaned := spaceRe.ReplaceAllString(stripped, " ")

	cleaned = strings.ReplaceAll(cleaned, "&amp;", "&")
	cleaned = strings.ReplaceAll(cleaned, "&lt;", "<")
	cleaned = strings.ReplaceAll(cleaned, "&gt;", ">")
	cleaned = strings.ReplaceAll(cleaned, "&quot;", "\"")
	cleaned = strings.ReplaceAll(cleaned, "&#39;", "'")
	cleaned = strings.ReplaceAll(cleaned, "&nbsp;", " ")

	return strings.TrimSpace(cleaned)
}
