package resolve

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclModule is the HCL form of a module:
//
//	snippet "login" {
//	  data     = { fields = ["user", "password"] }
//	  template = <<-EOT
//	    ...
//	  EOT
//	}
//
//	component "Input" {
//	  params   = ["name"]
//	  defaults = { kind = "text" }
//	  template = "<input name=\"<<name>>\">"
//	}
type hclModule struct {
	Snippets   []*hclSnippet   `hcl:"snippet,block"`
	Components []*hclComponent `hcl:"component,block"`
}

type hclSnippet struct {
	Name     string         `hcl:"name,label"`
	Template string         `hcl:"template"`
	Data     hcl.Expression `hcl:"data,optional"`
}

type hclComponent struct {
	Name     string         `hcl:"name,label"`
	Template string         `hcl:"template"`
	Params   []string       `hcl:"params,optional"`
	Defaults hcl.Expression `hcl:"defaults,optional"`
}

func decodeHCL(path string, src []byte) (yamlModule, error) {
	var doc yamlModule

	file, diags := hclparse.NewParser().ParseHCL(src, path)
	if diags.HasErrors() {
		return doc, diags
	}

	var raw hclModule
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return doc, diags
	}

	doc.Snippets = make(map[string]Snippet, len(raw.Snippets))

	for _, s := range raw.Snippets {
		if _, ok := doc.Snippets[s.Name]; ok {
			return doc, fmt.Errorf("duplicate snippet %q", s.Name)
		}

		data, err := objectValue(s.Data)
		if err != nil {
			return doc, fmt.Errorf("snippet %q data: %w", s.Name, err)
		}

		doc.Snippets[s.Name] = Snippet{Template: s.Template, Data: data}
	}

	doc.Components = make(map[string]Component, len(raw.Components))

	for _, c := range raw.Components {
		if _, ok := doc.Components[c.Name]; ok {
			return doc, fmt.Errorf("duplicate component %q", c.Name)
		}

		defaults, err := objectValue(c.Defaults)
		if err != nil {
			return doc, fmt.Errorf("component %q defaults: %w", c.Name, err)
		}

		doc.Components[c.Name] = Component{
			Template: c.Template,
			Params:   c.Params,
			Defaults: defaults,
		}
	}

	return doc, nil
}

// objectValue evaluates an optional object-valued attribute.
func objectValue(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}

	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}

	native, err := ctyToNative(v)
	if err != nil {
		return nil, err
	}

	switch m := native.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	default:
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
}

// ctyToNative converts v to the Go values used in template scopes. Whole
// numbers become int, other numbers float64.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		if bf := v.AsBigFloat(); bf.IsInt() {
			var i int
			if err := gocty.FromCtyValue(v, &i); err == nil {
				return i, nil
			}
		}

		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("number: %w", err)
		}

		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		s := make([]any, 0, v.LengthInt())

		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()

			n, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}

			s = append(s, n)
		}

		return s, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)

		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()

			n, err := ctyToNative(ev)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", k.AsString(), err)
			}

			m[k.AsString()] = n
		}

		return m, nil

	default:
		return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
	}
}
