// Package templates holds the dashboard's HTML components. The *_templ.go
// files are generated from the .templ sources with `templ generate`.
package templates

import "strconv"

//go:generate templ generate

const DatastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

func skippedNote(skipped int) string {
	if skipped == 0 {
		return ""
	}
	return ", " + strconv.Itoa(skipped) + " malformed rows skipped"
}
