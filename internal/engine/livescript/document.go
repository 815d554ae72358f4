package livescript

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"mpath/internal/engine/model"
)

// codeStyle is the paragraph style MATLAB gives code paragraphs.
const codeStyle = "matlab-Code"

// ParseDocument reads the ordered code and text sections of a live script
// document.xml. Adjacent paragraphs of the same kind merge into one section
// and empty sections are dropped. On malformed XML the sections read so far
// are returned with the error.
func ParseDocument(data []byte) ([]model.Section, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		sections []model.Section
		kind     model.SectionKind
		lines    []string
		para     strings.Builder
		style    model.SectionKind
		inPara   bool
		inText   bool
	)
	flush := func() {
		content := strings.Join(lines, "\n")
		if strings.TrimSpace(content) != "" {
			sections = append(sections, model.Section{Kind: kind, Content: content})
		}
		lines = nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			return sections, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				style = model.SectionText
				para.Reset()
			case "pStyle":
				if inPara && attr(t, "val") == codeStyle {
					style = model.SectionCode
				}
			case "t":
				inText = inPara
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inPara = false
				if style != kind {
					flush()
					kind = style
				}
				if text := para.String(); text != "" {
					lines = append(lines, text)
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()
	return sections, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
