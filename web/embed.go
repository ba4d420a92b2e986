// Package web embeds the globe frontend so the server ships as a single
// binary.
package web

import "embed"

//go:embed index.html app.js styles.css
var Content embed.FS
