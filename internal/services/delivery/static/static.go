// Package static embeds the fallback entry page served when the asset root
// does not provide one.
package static

import _ "embed"

// EntryPage is the placeholder bundle entry page. It renders a visible
// notice so a deployment missing its built assets is diagnosable instead of
// answering the root with a bare 404.
//
//go:embed index.html
var EntryPage []byte
