// Package eppxml bundles request templates for the common EPP commands.
//
// Every command extends layout.xml, which provides the <epp><command>
// envelope and a clTRID element. The clTRID value comes from the "clTRID"
// entry of the render data and is generated when absent.
//
//	domain/check    names   []string
//	domain/info     name    string, hosts (optional), password (optional)
//	contact/check   ids     []string
//	contact/info    id      string, password (optional)
//	poll/request    msgID   (optional, acknowledges the message when set)
package eppxml

import "embed"

// FS holds the bundled templates, rooted at this package's directory.
//
//go:embed *.xml domain contact poll
var FS embed.FS
