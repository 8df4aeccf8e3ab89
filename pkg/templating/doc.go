/*
Package templating compiles and renders XML request templates.

A template is an XML document with a small directive language layered on top:

	{% extends 'layout' %}            inline another template here
	{% include 'domain/contact' %}    same as extends
	{% block name %}...{% endblock %} declare a named block
	{% yield name %}                  place the content of a block
	{{ expr }}                        insert the value of expr as-is
	{{{ expr }}}                      insert the value of expr with markup escaped
	{% if expr %} {% else %} {% endif %}, {% range $x := items %} {% endfor %}

Expressions use Go's text/template syntax with the sprig function library. A
bare name such as contact.email reads the "contact" entry of the data map
passed to Render, so there is no need for a leading dot. A name that is also
a function (list, date, title) is only called when it starts a command and
has arguments, as in {{ date "2006" when }}. Used alone or as an argument it
reads the data entry of that name and calls the function only when no such
entry exists. A nil value prints nothing in either interpolation form.

A block declared again under the same name replaces the earlier content,
unless the new body contains @parent, which is replaced by the earlier
content. With several levels of inheritance, Config.ParentMode chooses whether
@parent refers to the immediately preceding declaration or to the first one.

Compiled templates are kept in a Store (memory, one JSON file per template, or
a SQLite table) together with a fingerprint of every source file they were
built from. When caching is enabled a stored template is reused until one of
those files changes.

Every rendered document is checked for well-formedness and re-indented. A
render either returns the complete normalized document or an error:
*LookupError, *ExpressionError or *DocumentFormatError.
*/
package templating
