/*
Package pathmap reads nested response data through dotted paths.

A decoded registry response is a tree of maps and lists. Flatten collapses it
into a single-level map keyed by dotted paths ("epp.response.result.msg"),
after which Get and HasKey answer lookups, including prefix queries such as
Get("epp.response.result.extValue.*", flat, nil). FromXML produces the nested
input from a response document.

All functions are pure and safe for concurrent use.
*/
package pathmap
