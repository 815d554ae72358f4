package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mpath/internal/engine/model"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)
)

func validateFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(allowed, "|"))
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// formatObjectText prints a header for o followed by its direct members.
func formatObjectText(w io.Writer, o *model.Object) {
	fmt.Fprintf(w, "%s  %s\n", nameStyle.Render(o.QualifiedName), kindStyle.Render(o.Kind.String()))
	if o.Path != "" {
		loc := o.Path
		if o.DefinitionPath != "" && o.DefinitionPath != o.Path {
			loc = o.DefinitionPath
		}
		if o.Lines.Start > 0 {
			loc = fmt.Sprintf("%s:%d", loc, o.Lines.Start)
		}
		fmt.Fprintln(w, pathStyle.Render(loc))
	}
	if doc := strings.TrimSpace(o.DocText()); doc != "" {
		fmt.Fprintln(w)
		for _, line := range strings.Split(doc, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if o.Class != nil && len(o.Class.Bases) > 0 {
		fmt.Fprintf(w, "\nBases: %s\n", strings.Join(o.Class.Bases, ", "))
	}
	if o.Callable != nil {
		fmt.Fprintf(w, "\nSignature: %s\n", signature(o))
	}
	if o.Live != nil {
		fmt.Fprintf(w, "\nSections: %d\n", len(o.Live.Sections))
	}

	if o.Members.Len() > 0 {
		fmt.Fprintln(w)
		formatMembersText(w, o.Members.Values(), "")
	}
	for _, warning := range o.Warnings {
		fmt.Fprintf(w, "%s line %d: %s\n", warnStyle.Render("warning"), warning.Line, warning.Message)
	}
}

// formatMembersText prints members as aligned columns. from is shown as an
// extra column when set.
func formatMembersText(w io.Writer, members []*model.Object, from string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "NAME\tKIND\tACCESS"
	if from != "" {
		header += "\tFROM"
	}
	fmt.Fprintln(tw, header)
	for _, m := range members {
		row := fmt.Sprintf("%s\t%s\t%s", m.Name, m.Kind, access(m))
		if from != "" {
			row += "\t" + m.Parent
		}
		fmt.Fprintln(tw, row)
	}
	tw.Flush()
}

func access(o *model.Object) string {
	switch {
	case o.Callable != nil && o.Kind == model.KindMethod:
		return o.Callable.Access.String()
	case o.Property != nil:
		return o.Property.GetAccess.String()
	}
	return "-"
}

// signature renders "[a, b] = name(x, y)".
func signature(o *model.Object) string {
	var b strings.Builder
	if outs := o.Callable.ReturnNames(); len(outs) == 1 {
		b.WriteString(outs[0] + " = ")
	} else if len(outs) > 1 {
		b.WriteString("[" + strings.Join(outs, ", ") + "] = ")
	}
	b.WriteString(o.Name)
	b.WriteString("(")
	for i, a := range o.Callable.Arguments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
	}
	b.WriteString(")")
	return b.String()
}
