// Package assets embeds the options and popup pages served by the daemon.
package assets

import (
	_ "embed"
)

//go:embed options.html
var OptionsHTML string

//go:embed popup.html
var PopupHTML string
