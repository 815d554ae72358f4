package main

import (
	"mpath/internal/engine/model"
)

// objectView is the serialized form of a model object.
type objectView struct {
	Name          string        `json:"name" yaml:"name"`
	QualifiedName string        `json:"qualified_name" yaml:"qualified_name"`
	Kind          string        `json:"kind" yaml:"kind"`
	Path          string        `json:"path,omitempty" yaml:"path,omitempty"`
	Definition    string        `json:"definition,omitempty" yaml:"definition,omitempty"`
	Line          int           `json:"line,omitempty" yaml:"line,omitempty"`
	Doc           string        `json:"doc,omitempty" yaml:"doc,omitempty"`
	Access        string        `json:"access,omitempty" yaml:"access,omitempty"`
	Type          string        `json:"type,omitempty" yaml:"type,omitempty"`
	Dimensions    string        `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Validators    []string      `json:"validators,omitempty" yaml:"validators,omitempty"`
	Default       string        `json:"default,omitempty" yaml:"default,omitempty"`
	Value         string        `json:"value,omitempty" yaml:"value,omitempty"`
	Bases         []string      `json:"bases,omitempty" yaml:"bases,omitempty"`
	Attributes    []string      `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Arguments     []objectView  `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Returns       []objectView  `json:"returns,omitempty" yaml:"returns,omitempty"`
	Members       []objectView  `json:"members,omitempty" yaml:"members,omitempty"`
	Sections      []sectionView `json:"sections,omitempty" yaml:"sections,omitempty"`
	Warnings      []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type sectionView struct {
	Kind    string `json:"kind" yaml:"kind"`
	Content string `json:"content" yaml:"content"`
}

func newView(o *model.Object) objectView {
	v := objectView{
		Name:          o.Name,
		QualifiedName: o.QualifiedName,
		Kind:          o.Kind.String(),
		Path:          o.Path,
		Line:          o.Lines.Start,
		Doc:           o.DocText(),
	}
	if o.DefinitionPath != o.Path {
		v.Definition = o.DefinitionPath
	}

	switch {
	case o.Class != nil:
		v.Bases = o.Class.Bases
		v.Attributes = attributeNames(
			"abstract", o.Class.Abstract,
			"sealed", o.Class.Sealed,
			"hidden", o.Class.Hidden,
			"handle", o.Class.Handle,
			"synthetic", o.Class.Synthetic,
		)
	case o.Callable != nil:
		if o.Kind == model.KindMethod {
			v.Access = o.Callable.Access.String()
		}
		v.Attributes = attributeNames(
			"static", o.Callable.Static,
			"abstract", o.Callable.Abstract,
			"hidden", o.Callable.Hidden,
			"sealed", o.Callable.Sealed,
			"local", o.Callable.Local,
		)
		v.Arguments = views(o.Callable.Arguments)
		v.Returns = views(o.Callable.Returns)
	case o.Property != nil:
		p := o.Property
		v.Access = p.GetAccess.String()
		if p.SetAccess != p.GetAccess {
			v.Access += "/" + p.SetAccess.String()
		}
		v.Type, v.Dimensions, v.Validators = p.DeclaredType, p.Dimensions, p.Validators
		if p.HasDefault {
			v.Default = p.Default
		}
		v.Attributes = attributeNames(
			"constant", p.Constant,
			"dependent", p.Dependent,
			"hidden", p.Hidden,
			"abstract", p.Abstract,
			"transient", p.Transient,
		)
	case o.Argument != nil:
		a := o.Argument
		v.Type, v.Dimensions, v.Validators = a.DeclaredType, a.Dimensions, a.Validators
		if a.HasDefault {
			v.Default = a.Default
		}
		v.Attributes = attributeNames(
			"required", a.Required(),
			"repeating", a.Repeating,
			"named", a.Named,
		)
	case o.Enum != nil:
		v.Value = o.Enum.Value
	case o.Live != nil:
		for _, s := range o.Live.Sections {
			v.Sections = append(v.Sections, sectionView{Kind: string(s.Kind), Content: s.Content})
		}
	}

	v.Members = views(o.Members.Values())
	for _, w := range o.Warnings {
		v.Warnings = append(v.Warnings, w.Message)
	}
	return v
}

func views(objs []*model.Object) []objectView {
	if len(objs) == 0 {
		return nil
	}
	out := make([]objectView, len(objs))
	for i, o := range objs {
		out[i] = newView(o)
	}
	return out
}

// attributeNames takes name/value pairs and returns the names whose value is true.
func attributeNames(pairs ...any) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if set, _ := pairs[i+1].(bool); set {
			out = append(out, pairs[i].(string))
		}
	}
	return out
}
