/*-------------------------------------------------------------------------
 *
 * export.go
 *    HTML rendering for workflow exports
 *
 * Content crews emit Markdown bodies; exports carry a rendered HTML
 * sibling so the bundle can be reviewed without tooling.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/results/export.go
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

/* attachRenderedContent adds a content_html field to every content result
 * whose content field holds a Markdown body. Rendering failures leave the
 * result untouched; the export is an audit artifact, not a write path. */
func attachRenderedContent(export *WorkflowExport) {
	for i := range export.Runs {
		for j := range export.Runs[i].Results {
			result := &export.Runs[i].Results[j]
			if result.CrewType != "content" || result.Content == nil {
				continue
			}
			body, ok := result.Content["content"].(string)
			if !ok || body == "" {
				continue
			}

			var buf bytes.Buffer
			if err := markdown.Convert([]byte(body), &buf); err != nil {
				continue
			}

			rendered := make(map[string]interface{}, len(result.Content)+1)
			for k, v := range result.Content {
				rendered[k] = v
			}
			rendered["content_html"] = buf.String()
			result.Content = rendered
		}
	}
}
