// Package cogen implements the template language used to generate code.
//
// A template is text in which lines beginning with optional whitespace and
// a '%' marker are control lines, and "<<expr>>" spans interpolate the value
// of an expression:
//
//	%for name, age in people
//	    <<name>> is <<age>> years old
//	%/for
//	%if len(people) == 0
//	    nobody
//	%elif len(people) == 1
//	    one person
//	%else
//	    <<len(people)>> people
//	%/if
//
// A line starting with "%%" is literal text with one '%' removed.
//
// Every block opened by "%keyword args" is closed by "%/keyword". The "for"
// and "if" keywords are built in; "r" renders a component and "body" marks
// where a component renders the content nested in the "%r" block that
// invoked it. Other keywords dispatch to handlers registered with
// [WithBlock].
//
// Expressions use the expr language (github.com/expr-lang/expr) with None,
// True and False accepted as aliases of nil, true and false. Every free
// identifier must be bound in scope, in the component [Registry], or among
// the [Builtins]; otherwise evaluation fails with [ErrUnbound].
//
// # Indentation
//
// Templates are dedented before parsing. Each rendered line keeps its
// indentation relative to the template, so the prefix of a "%for" or "%if"
// line does not add to the lines it encloses. A "%r" block indents the
// component it renders by the block's own prefix, and "%body" indents the
// caller's content by its own prefix plus the content's indentation relative
// to the "%r" line.
//
// # Components
//
// A [Component] supplies a template. While it renders, its scope holds
// "self", its fields (see [Fielder]), and the names of its registry, but
// never the variables of the template that invoked it. Parsed templates are
// kept in a [Cache] shared by every render of an [Engine].
package cogen
