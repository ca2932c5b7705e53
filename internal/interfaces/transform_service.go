package interfaces

// TransformService converts canonical entry HTML into markdown for export.
// baseURL prefixes relative image and link targets so exported documents
// resolve outside the editor.
type TransformService interface {
	HTMLToMarkdown(html string, baseURL string) (string, error)
}
