// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	rootElement = "TYPO3L10N"
	maxLineSize = 4 << 20
)

// WriteTo writes the document as localization XML. Every data element is
// written on its own line so that lines can be removed from the file
// without breaking the remaining elements.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	bw.WriteString(xml.Header)
	bw.WriteString("<" + rootElement + ">\n")
	bw.WriteString("\t<head>\n")
	writeHeadLine(bw, "t3_l10ncfg", strconv.FormatInt(d.Header.ConfigUID, 10))
	writeHeadLine(bw, "t3_sysLang", strconv.FormatInt(d.Header.SysLang, 10))
	writeHeadLine(bw, "t3_sourceLang", d.Header.SourceLang)
	writeHeadLine(bw, "t3_targetLang", d.Header.TargetLang)
	writeHeadLine(bw, "t3_formatVersion", d.Header.FormatVersion)
	bw.WriteString("\t</head>\n")

	for _, p := range d.Pages {
		fmt.Fprintf(bw, "\t<pageGrp id=\"%d\">\n", p.ID)
		for _, el := range p.Elements {
			fmt.Fprintf(bw, "\t\t<data table=\"%s\" elementUid=\"%d\" key=\"%s\"",
				escape(el.Table), el.UID, escape(el.LineKey()))
			if el.Field == "" {
				bw.WriteString(" />\n")
				continue
			}
			bw.WriteString(">" + escape(el.Value) + "</data>\n")
		}
		bw.WriteString("\t</pageGrp>\n")
	}
	bw.WriteString("</" + rootElement + ">\n")

	err := bw.Flush()
	return cw.n, err
}

func writeHeadLine(bw *bufio.Writer, name, value string) {
	fmt.Fprintf(bw, "\t\t<%s>%s</%s>\n", name, escape(value), name)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type dataLine struct {
	Table      string `xml:"table,attr"`
	ElementUID int64  `xml:"elementUid,attr"`
	Key        string `xml:"key,attr"`
	Value      string `xml:",chardata"`
}

// Parse reads a localization XML document line by line. Lines holding only
// a closing tag are ignored, so any line may be removed from an exported
// file. The head must name the target language.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}
	var haveLang bool

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "</") || strings.HasPrefix(line, "<?") {
			continue
		}

		dec := xml.NewDecoder(strings.NewReader(line))
		start, err := firstStart(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, n, err)
		}

		switch name := start.Name.Local; name {
		case rootElement, "head":
		case "pageGrp":
			id, err := strconv.ParseInt(attr(start, "id"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: pageGrp id: %v", ErrInvalidDocument, n, err)
			}
			doc.Pages = append(doc.Pages, PageGroup{ID: id})
		case "data":
			el, err := decodeData(dec, start)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, n, err)
			}
			if len(doc.Pages) == 0 {
				doc.Pages = append(doc.Pages, PageGroup{})
			}
			last := &doc.Pages[len(doc.Pages)-1]
			last.Elements = append(last.Elements, el)
		case "t3_l10ncfg", "t3_sysLang", "t3_sourceLang", "t3_targetLang", "t3_formatVersion":
			var value string
			if err := dec.DecodeElement(&value, &start); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, n, err)
			}
			if err := doc.Header.set(name, strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, n, err)
			}
			if name == "t3_sysLang" || name == "t3_targetLang" {
				haveLang = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if !haveLang {
		return nil, fmt.Errorf("%w: head names no target language", ErrInvalidDocument)
	}
	return doc, nil
}

func (h *Header) set(name, value string) error {
	var err error
	switch name {
	case "t3_l10ncfg":
		h.ConfigUID, err = strconv.ParseInt(value, 10, 64)
	case "t3_sysLang":
		h.SysLang, err = strconv.ParseInt(value, 10, 64)
	case "t3_sourceLang":
		h.SourceLang = value
	case "t3_targetLang":
		h.TargetLang = value
	case "t3_formatVersion":
		h.FormatVersion = value
	}
	if err != nil {
		return fmt.Errorf("%s: %v", name, err)
	}
	return nil
}

func firstStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func decodeData(dec *xml.Decoder, start xml.StartElement) (Element, error) {
	var d dataLine
	if err := dec.DecodeElement(&d, &start); err != nil {
		return Element{}, err
	}
	if d.Table == "" || d.ElementUID <= 0 {
		return Element{}, errors.New("data element without table or elementUid")
	}

	el := Element{Table: d.Table, UID: d.ElementUID, Value: d.Value}
	if d.Key == "" {
		return el, nil
	}
	parts := strings.SplitN(d.Key, ":", 3)
	if len(parts) != 3 || parts[0] != d.Table || parts[1] != strconv.FormatInt(d.ElementUID, 10) {
		return Element{}, fmt.Errorf("key %q does not match %s:%d", d.Key, d.Table, d.ElementUID)
	}
	el.Field = parts[2]
	if el.Field == "" {
		el.Value = ""
	}
	return el, nil
}
