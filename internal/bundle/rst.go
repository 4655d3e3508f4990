package bundle

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// The debug-name table is a small fixed-shape XML document:
//
//	<ResourceStringTable>
//		<Resource id="%08x" type="..." name="..."/>
//	</ResourceStringTable>
//
// The byte shape is contractual (tab indent, id/type/name attribute order,
// self-closing tags without a space), so emission formats directly and only
// attribute values go through XML escaping. Parsing is a tolerant token scan:
// the table is advisory, and the legacy fix-ups below can leave the document
// without a closing root element.

func buildResourceStringTable(entries map[uint32]DebugInfo) string {
	if len(entries) == 0 {
		return "<ResourceStringTable/>\n"
	}

	ids := make([]uint32, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteString("<ResourceStringTable>\n")
	for _, id := range ids {
		info := entries[id]
		fmt.Fprintf(&sb, "\t<Resource id=\"%08x\" type=\"%s\" name=\"%s\"/>\n",
			id, escapeAttr(info.TypeName), escapeAttr(info.Name))
	}
	sb.WriteString("</ResourceStringTable>\n")
	return sb.String()
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// parseResourceStringTable collects every <Resource> element it can find.
// Malformed input yields whatever was parsed before the error; the caller
// treats the table as advisory.
func parseResourceStringTable(doc string) map[uint32]DebugInfo {
	entries := make(map[uint32]DebugInfo)
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			return entries
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Resource" {
			continue
		}
		var id uint64
		var idOK bool
		var info DebugInfo
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "id":
				v, err := strconv.ParseUint(attr.Value, 16, 32)
				if err == nil {
					id, idOK = v, true
				}
			case "name":
				info.Name = attr.Value
			case "type":
				info.TypeName = attr.Value
			}
		}
		if idOK {
			entries[uint32(id)] = info
		}
	}
}

// fixupLegacyTable repairs the two known bugs of the Criterion legacy
// writer: a leading slash turning the opening root tag into a closing one,
// and a stray "</ResourceStringTable>\n\t" inside the document.
func fixupLegacyTable(doc string) string {
	if strings.HasPrefix(doc, "</ResourceStringTable>") && len(doc) >= 2 {
		doc = doc[:1] + doc[2:]
	}
	if i := strings.Index(doc, "</ResourceStringTable>\n\t"); i >= 0 {
		doc = doc[:i] + doc[i+len("</ResourceStringTable>\n\t"):]
	}
	return doc
}
