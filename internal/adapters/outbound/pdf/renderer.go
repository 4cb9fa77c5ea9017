package pdf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

const (
	pageMargin = 15.0
	lineHeight = 5.0
)

// Renderer writes snapshots as A4 PDF reports.
type Renderer struct {
	logger   zerolog.Logger
	compress bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for progress messages.
func WithLogger(l zerolog.Logger) Option { return func(r *Renderer) { r.logger = l } }

// WithCompression toggles content stream compression.
func WithCompression(on bool) Option { return func(r *Renderer) { r.compress = on } }

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{logger: zerolog.Nop(), compress: true}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ domain.ReportRenderer = (*Renderer)(nil)

// Render writes the report to opts.OutputPath and returns that path.
func (r *Renderer) Render(snap *domain.Snapshot, mode domain.Mode, opts domain.RenderOptions) (string, error) {
	f, err := os.Create(opts.OutputPath)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	if err := r.Write(w, snap, mode, opts); err != nil {
		f.Close()
		return "", err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	r.logger.Info().Str("path", opts.OutputPath).Msg("report written")
	return opts.OutputPath, nil
}

// Write renders the report to w.
func (r *Renderer) Write(w io.Writer, snap *domain.Snapshot, mode domain.Mode, opts domain.RenderOptions) error {
	if snap == nil {
		return fmt.Errorf("rendering report: nil snapshot")
	}
	if opts.Generated.IsZero() {
		opts.Generated = time.Now()
	}

	rc := newRenderContext(snap, mode, opts, r.compress)
	steps := []struct {
		name string
		fn   func()
	}{
		{"cover", rc.cover},
		{"security", func() { rc.issueSection(domain.CategorySecurity) }},
		{"reliability", func() { rc.issueSection(domain.CategoryReliability) }},
		{"maintainability", func() { rc.issueSection(domain.CategoryMaintainability) }},
		{"hotspots", rc.hotspotSection},
		{"rules", rc.rulesSection},
	}
	for _, s := range steps {
		s.fn()
		if opts.Verbose {
			r.logger.Info().Str("section", s.name).Int("pages", rc.pdf.PageCount()).Msg("section rendered")
		}
		if err := rc.pdf.Error(); err != nil {
			return fmt.Errorf("rendering %s section: %w", s.name, err)
		}
	}
	return rc.pdf.Output(w)
}

// renderContext holds the state of one rendering pass.
type renderContext struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	snap     *domain.Snapshot
	mode     domain.Mode
	opts     domain.RenderOptions
	contentW float64
	pageH    float64
}

func newRenderContext(snap *domain.Snapshot, mode domain.Mode, opts domain.RenderOptions, compress bool) *renderContext {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetCompression(compress)
	p.SetMargins(pageMargin, pageMargin+5, pageMargin)
	p.SetAutoPageBreak(true, pageMargin+5)
	p.SetCreationDate(opts.Generated)
	p.SetModificationDate(opts.Generated)
	p.SetCatalogSort(true)
	p.AliasNbPages("")

	title := "Code Quality Report"
	if snap.Project.Name != "" {
		title += ": " + snap.Project.Name
	}
	p.SetTitle(title, true)
	p.SetSubject(snap.Project.Key, true)
	p.SetCreator("reflectsonar", true)
	p.SetKeywords("sonarqube quality report", true)

	w, h := p.GetPageSize()
	rc := &renderContext{
		pdf:      p,
		tr:       p.UnicodeTranslatorFromDescriptor(""),
		snap:     snap,
		mode:     mode,
		opts:     opts,
		contentW: w - 2*pageMargin,
		pageH:    h,
	}
	p.SetHeaderFunc(rc.header)
	p.SetFooterFunc(rc.footer)
	return rc
}

func (rc *renderContext) header() {
	if rc.pdf.PageNo() == 1 {
		return
	}
	p := rc.pdf
	p.SetY(8)
	rc.font("B", 9, accentColor)
	p.CellFormat(rc.contentW/2, 5, "ReflectSonar", "", 0, "L", false, 0, "")
	rc.font("", 8, mutedColor)
	p.CellFormat(rc.contentW/2, 5, rc.tr(rc.projectName()), "", 1, "R", false, 0, "")
	rc.drawColor(ruleColor)
	p.Line(pageMargin, 14, pageMargin+rc.contentW, 14)
	p.SetY(pageMargin + 5)
}

func (rc *renderContext) footer() {
	p := rc.pdf
	p.SetY(-12)
	rc.font("", 7, mutedColor)
	p.CellFormat(rc.contentW/2, 5, rc.tr("Report "+rc.opts.ReportID), "", 0, "L", false, 0, "")
	p.CellFormat(rc.contentW/2, 5, fmt.Sprintf("Page %d/{nb}", p.PageNo()), "", 0, "R", false, 0, "")
}

func (rc *renderContext) projectName() string {
	if rc.snap.Project.Name != "" {
		return rc.snap.Project.Name
	}
	return rc.snap.Project.Key
}

func (rc *renderContext) font(style string, size float64, c rgb) {
	rc.pdf.SetFont("Helvetica", style, size)
	rc.pdf.SetTextColor(c.r, c.g, c.b)
}

func (rc *renderContext) fill(c rgb)      { rc.pdf.SetFillColor(c.r, c.g, c.b) }
func (rc *renderContext) drawColor(c rgb) { rc.pdf.SetDrawColor(c.r, c.g, c.b) }

// title starts a bookmarked section on a fresh page.
func (rc *renderContext) title(text string) {
	rc.pdf.AddPage()
	rc.pdf.Bookmark(text, 0, -1)
	rc.font("B", 18, textColor)
	rc.pdf.CellFormat(rc.contentW, 10, rc.tr(text), "", 1, "L", false, 0, "")
	rc.drawColor(accentColor)
	rc.pdf.SetLineWidth(0.6)
	y := rc.pdf.GetY()
	rc.pdf.Line(pageMargin, y, pageMargin+rc.contentW, y)
	rc.pdf.SetLineWidth(0.2)
	rc.pdf.Ln(4)
}

func (rc *renderContext) subtitle(text string) {
	rc.ensureSpace(14)
	rc.font("B", 12, textColor)
	rc.pdf.CellFormat(rc.contentW, 7, rc.tr(text), "", 1, "L", false, 0, "")
	rc.pdf.Ln(1)
}

func (rc *renderContext) paragraph(text string) {
	rc.font("", 9, textColor)
	rc.pdf.MultiCell(rc.contentW, lineHeight, rc.tr(text), "", "L", false)
	rc.pdf.Ln(1)
}

func (rc *renderContext) muted(text string) {
	rc.font("I", 9, mutedColor)
	rc.pdf.MultiCell(rc.contentW, lineHeight, rc.tr(text), "", "L", false)
	rc.pdf.Ln(1)
}

// badge draws a filled label at the current position without moving down.
func (rc *renderContext) badge(w, h float64, text string, c rgb) {
	rc.fill(c)
	rc.drawColor(c)
	if c.light() {
		rc.font("B", 8, textColor)
	} else {
		rc.font("B", 8, rgb{255, 255, 255})
	}
	rc.pdf.CellFormat(w, h, rc.tr(text), "1", 0, "C", true, 0, "")
}

// ensureSpace breaks the page when fewer than h millimetres remain.
func (rc *renderContext) ensureSpace(h float64) {
	_, _, _, bottom := rc.pdf.GetMargins()
	if rc.pdf.GetY()+h > rc.pageH-bottom {
		rc.pdf.AddPage()
	}
}

// lines splits text into the rows MultiCell would print in width w.
func (rc *renderContext) lines(text string, w float64) int {
	n := len(rc.pdf.SplitLines([]byte(rc.tr(text)), w-2*rc.pdf.GetCellMargin()))
	return max(n, 1)
}
