package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"scribe/domain/content"
	"scribe/domain/core/valueobjects"
)

// Slide geometry in EMU for a 16:9 deck.
const (
	slideWidth  = 12192000
	slideHeight = 6858000
	marginX     = 609600
	titleY      = 365760
	titleHeight = 1143000
	bodyY       = 1645920
	bodyHeight  = 4754880
	rowHeight   = 370840

	sectionBodyLimit = 500
)

// PPTXRenderer writes an Office Open XML presentation.
type PPTXRenderer struct{}

func NewPPTXRenderer() *PPTXRenderer { return &PPTXRenderer{} }

func (r *PPTXRenderer) Format() valueobjects.ExportFormat { return valueobjects.FormatPPTX }

type slide struct {
	title    string
	subtitle bool
	lines    []string
	table    *content.Table
	image    *slideImage
}

type slideImage struct {
	data []byte
	ext  string
}

func (r *PPTXRenderer) Render(doc *Document, opts valueobjects.ExportOptions) (*Artifact, error) {
	o, ok := opts.(valueobjects.PPTXOptions)
	if !ok {
		o = valueobjects.DefaultExportOptions(valueobjects.FormatPPTX).(valueobjects.PPTXOptions)
	}

	data, err := writePresentation(doc.Title, doc.GeneratedAt, buildSlides(doc, o))
	if err != nil {
		return nil, err
	}
	return artifactFor(valueobjects.FormatPPTX, data), nil
}

// buildSlides lays out the deck: a title slide, then per board an optional
// divider, photo, section, table and diagram slides, and finally one slide
// with every action item.
func buildSlides(doc *Document, o valueobjects.PPTXOptions) []slide {
	titleLines := []string{"Generated on " + doc.GeneratedAt.Format("January 2, 2006")}
	if doc.Description != "" {
		titleLines = append(titleLines, doc.Description)
	}
	slides := []slide{{title: doc.Title, subtitle: true, lines: titleLines}}

	var actions []string
	for _, b := range doc.Boards {
		c := b.Content
		if doc.MultiBoard() {
			s := slide{title: b.Label(), subtitle: true}
			if c.Title != "" {
				s.lines = []string{c.Title}
			}
			slides = append(slides, s)
		}

		if o.IncludeImages {
			if ext := imageExtension(b.MimeType); ext != "" && len(b.Image) > 0 {
				slides = append(slides, slide{
					title: orDefault(c.Title, "Original whiteboard"),
					image: &slideImage{data: b.Image, ext: ext},
				})
			}
		}

		for _, s := range c.Sections {
			slides = append(slides, slide{title: orDefault(s.Heading, "Section"), lines: sectionLines(s)})
		}

		for i := range c.Tables {
			t := c.Tables[i]
			if tableWidth(t) == 0 {
				continue
			}
			slides = append(slides, slide{title: orDefault(t.Title, "Table"), table: &t})
		}

		if len(c.KeyPoints) > 0 {
			slides = append(slides, slide{title: "Key Points", lines: bullets(c.KeyPoints)})
		}

		if o.IncludeDiagrams {
			for _, d := range c.Diagrams {
				lines := []string{}
				if d.Description != "" {
					lines = append(lines, d.Description)
				}
				lines = append(lines, bullets(d.Elements)...)
				slides = append(slides, slide{title: "Diagram: " + titleCase(orDefault(d.Type, "diagram")), lines: lines})
			}
		}

		for _, item := range c.ActionItems {
			line := "• " + item.Task
			if item.Assignee != "" {
				line += " (@" + item.Assignee + ")"
			}
			actions = append(actions, line)
		}
	}

	if len(actions) > 0 {
		slides = append(slides, slide{title: "Action Items", lines: actions})
	}
	return slides
}

func sectionLines(s content.Section) []string {
	var lines []string
	if body := truncateRunes(strings.TrimSpace(s.Content), sectionBodyLimit); body != "" {
		lines = append(lines, strings.Split(body, "\n")...)
	}
	for _, sub := range s.Subsections {
		line := "• " + orDefault(sub.Heading, "Subsection")
		if sub.Content != "" {
			line += ": " + truncateRunes(sub.Content, 120)
		}
		lines = append(lines, line)
	}
	return lines
}

func bullets(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, "• "+it)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

// EmbeddableImage reports whether a whiteboard photo of mimeType can be placed
// on a slide. PowerPoint has no part type for WebP or HEIC, so those uploads
// are left out of the deck.
func EmbeddableImage(mimeType string) bool {
	return imageExtension(mimeType) != ""
}

func imageExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/gif":
		return "gif"
	}
	return ""
}

// writePresentation packages slides into a .pptx archive.
func writePresentation(title string, created time.Time, slides []slide) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, body string) error {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write([]byte(body))
		return err
	}
	writeBytes := func(name string, body []byte) error {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write(body)
		return err
	}

	files := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML(slides)},
		{"_rels/.rels", rootRelsXML},
		{"docProps/core.xml", coreXML(title, created)},
		{"docProps/app.xml", appXML(len(slides))},
		{"ppt/presentation.xml", presentationXML(len(slides))},
		{"ppt/_rels/presentation.xml.rels", presentationRelsXML(len(slides))},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterXML},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsXML},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutXML},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsXML},
		{"ppt/theme/theme1.xml", themeXML},
	}
	for _, f := range files {
		if err := write(f.name, f.body); err != nil {
			return nil, err
		}
	}

	imageNo := 0
	for i, s := range slides {
		n := i + 1
		var media string
		if s.image != nil {
			imageNo++
			media = fmt.Sprintf("image%d.%s", imageNo, s.image.ext)
			if err := writeBytes("ppt/media/"+media, s.image.data); err != nil {
				return nil, err
			}
		}
		if err := write(fmt.Sprintf("ppt/slides/slide%d.xml", n), slideXML(s)); err != nil {
			return nil, err
		}
		if err := write(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), slideRelsXML(media)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

const (
	nsA = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

	relTypeSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeLayout = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout"
	relTypeMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
	relTypeTheme  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relTypeImage  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	groupShapeProps = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
		`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`
)

func contentTypesXML(slides []slide) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	b.WriteString(`<Default Extension="jpeg" ContentType="image/jpeg"/>`)
	b.WriteString(`<Default Extension="gif" ContentType="image/gif"/>`)
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	b.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	b.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	for i := range slides {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i+1)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

const rootRelsXML = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
	`</Relationships>`

func coreXML(title string, created time.Time) string {
	stamp := created.UTC().Format("2006-01-02T15:04:05Z")
	return xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + esc(title) + `</dc:title>` +
		`<dc:creator>Scribe</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

func appXML(slides int) string {
	return xmlHeader +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
		`<Application>Scribe</Application>` +
		fmt.Sprintf(`<Slides>%d</Slides>`, slides) +
		`</Properties>`
}

func presentationXML(slides int) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:presentation ` + nsA + ` ` + nsR + ` ` + nsP + ` saveSubsetFonts="1">`)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	b.WriteString(`<p:sldIdLst>`)
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
	}
	b.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/>`, slideWidth, slideHeight)
	b.WriteString(`</p:presentation>`)
	return b.String()
}

func presentationRelsXML(slides int) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type="%s" Target="slideMasters/slideMaster1.xml"/>`, relTypeMaster)
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, i+2, relTypeSlide, i+1)
	}
	fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="theme/theme1.xml"/>`, slides+2, relTypeTheme)
	b.WriteString(`</Relationships>`)
	return b.String()
}

func slideRelsXML(media string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type="%s" Target="../slideLayouts/slideLayout1.xml"/>`, relTypeLayout)
	if media != "" {
		fmt.Fprintf(&b, `<Relationship Id="rId2" Type="%s" Target="../media/%s"/>`, relTypeImage, media)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func slideXML(s slide) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:sld ` + nsA + ` ` + nsR + ` ` + nsP + `><p:cSld><p:spTree>`)
	b.WriteString(groupShapeProps)

	if s.subtitle {
		textShape(&b, 2, "Title", marginX, 2286000, slideWidth-2*marginX, 1371600, 4000, true, []string{s.title})
		if len(s.lines) > 0 {
			textShape(&b, 3, "Subtitle", marginX, 3749040, slideWidth-2*marginX, 1371600, 2000, false, s.lines)
		}
	} else {
		textShape(&b, 2, "Title", marginX, titleY, slideWidth-2*marginX, titleHeight, 3200, true, []string{s.title})
		switch {
		case s.table != nil:
			tableFrame(&b, 3, *s.table)
		case s.image != nil:
			pictureShape(&b, 3)
		case len(s.lines) > 0:
			textShape(&b, 3, "Body", marginX, bodyY, slideWidth-2*marginX, bodyHeight, 1800, false, s.lines)
		}
	}

	b.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return b.String()
}

func textShape(b *strings.Builder, id int, name string, x, y, cx, cy, size int, bold bool, paragraphs []string) {
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, id, name)
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`, x, y, cx, cy)
	b.WriteString(`<p:txBody><a:bodyPr wrap="square"><a:normAutofit/></a:bodyPr><a:lstStyle/>`)
	boldAttr := ""
	if bold {
		boldAttr = ` b="1"`
	}
	for _, p := range paragraphs {
		fmt.Fprintf(b, `<a:p><a:r><a:rPr lang="en-US" sz="%d"%s dirty="0"/><a:t>%s</a:t></a:r></a:p>`, size, boldAttr, esc(p))
	}
	b.WriteString(`</p:txBody></p:sp>`)
}

func tableFrame(b *strings.Builder, id int, t content.Table) {
	width := tableWidth(t)
	colWidth := (slideWidth - 2*marginX) / width
	rows := len(t.Rows)
	if len(t.Headers) > 0 {
		rows++
	}

	fmt.Fprintf(b, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table"/><p:cNvGraphicFramePr><a:graphicFrameLocks noGrp="1"/></p:cNvGraphicFramePr><p:nvPr/></p:nvGraphicFramePr>`, id)
	fmt.Fprintf(b, `<p:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></p:xfrm>`, marginX, bodyY, colWidth*width, rowHeight*rows)
	fmt.Fprintf(b, `<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl><a:tblPr firstRow="%d" bandRow="1"/><a:tblGrid>`, boolAttr(len(t.Headers) > 0))
	for i := 0; i < width; i++ {
		fmt.Fprintf(b, `<a:gridCol w="%d"/>`, colWidth)
	}
	b.WriteString(`</a:tblGrid>`)

	if len(t.Headers) > 0 {
		tableRowXML(b, headers(t, width), true)
	}
	for _, row := range t.Rows {
		tableRowXML(b, cells(row, width), false)
	}
	b.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
}

func tableRowXML(b *strings.Builder, values []string, header bool) {
	fmt.Fprintf(b, `<a:tr h="%d">`, rowHeight)
	bold := ""
	if header {
		bold = ` b="1"`
	}
	for _, v := range values {
		fmt.Fprintf(b, `<a:tc><a:txBody><a:bodyPr/><a:lstStyle/><a:p><a:r><a:rPr lang="en-US" sz="1400"%s dirty="0"/><a:t>%s</a:t></a:r></a:p></a:txBody><a:tcPr/></a:tc>`, bold, esc(v))
	}
	b.WriteString(`</a:tr>`)
}

func pictureShape(b *strings.Builder, id int) {
	fmt.Fprintf(b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Whiteboard"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`, id)
	b.WriteString(`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`)
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`,
		marginX, bodyY, slideWidth-2*marginX, bodyHeight)
}

func boolAttr(v bool) int {
	if v {
		return 1
	}
	return 0
}

const slideMasterXML = xmlHeader +
	`<p:sldMaster ` + nsA + ` ` + nsR + ` ` + nsP + `>` +
	`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>` + groupShapeProps + `</p:spTree></p:cSld>` +
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
	`</p:sldMaster>`

const slideMasterRelsXML = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + relTypeLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
	`<Relationship Id="rId2" Type="` + relTypeTheme + `" Target="../theme/theme1.xml"/>` +
	`</Relationships>`

const slideLayoutXML = xmlHeader +
	`<p:sldLayout ` + nsA + ` ` + nsR + ` ` + nsP + ` type="blank" preserve="1">` +
	`<p:cSld name="Blank"><p:spTree>` + groupShapeProps + `</p:spTree></p:cSld>` +
	`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>` +
	`</p:sldLayout>`

const slideLayoutRelsXML = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + relTypeMaster + `" Target="../slideMasters/slideMaster1.xml"/>` +
	`</Relationships>`

const themeXML = xmlHeader +
	`<a:theme ` + nsA + ` name="Scribe">` +
	`<a:themeElements>` +
	`<a:clrScheme name="Scribe">` +
	`<a:dk1><a:srgbClr val="1F2937"/></a:dk1><a:lt1><a:srgbClr val="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="374151"/></a:dk2><a:lt2><a:srgbClr val="F3F4F6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="2563EB"/></a:accent1><a:accent2><a:srgbClr val="059669"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="D97706"/></a:accent3><a:accent4><a:srgbClr val="DC2626"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="7C3AED"/></a:accent5><a:accent6><a:srgbClr val="0891B2"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="2563EB"/></a:hlink><a:folHlink><a:srgbClr val="7C3AED"/></a:folHlink>` +
	`</a:clrScheme>` +
	`<a:fontScheme name="Scribe">` +
	`<a:majorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>` +
	`</a:fontScheme>` +
	`<a:fmtScheme name="Scribe">` +
	`<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>` +
	`<a:lnStyleLst><a:ln w="9525"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="25400"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="38100"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>` +
	`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>` +
	`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>` +
	`</a:fmtScheme>` +
	`</a:themeElements>` +
	`</a:theme>`
