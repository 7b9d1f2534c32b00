// Package resolve maps snippet names to the code that generates them.
//
// A name such as "web.forms.login" is split at its last dot into a module
// ("web.forms") and an entry ("login"). Entries are looked up first among the
// values registered with [Resolver.Register], then in module files found on
// the search paths as web/forms.yml, web/forms.yaml or web/forms.hcl.
//
// A YAML module looks like:
//
//	snippets:
//	  login:
//	    data:
//	      fields: [user, password]
//	    template: |
//	      %for f in fields
//	      %r Input(f)
//	      %/r
//	      %/for
//	components:
//	  Input:
//	    params: [name]
//	    template: |
//	      <input name="<<name>>">
//
// The HCL form declares the same content with "snippet" and "component"
// blocks labeled by name.
package resolve
