package credentials

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/campuspass/backend/internal/models"
)

// Ticket canvas in millimetres. The information panel takes 62% of the width.
const (
	ticketWidth  = 200.0
	ticketHeight = 80.0
	infoWidth    = ticketWidth * 0.62
	scanWidth    = ticketWidth - infoWidth
	qrEdge       = 50.0
	margin       = 8.0
)

const ellipsis = "..."

var (
	brand = [3]int{31, 58, 147}
	muted = [3]int{110, 110, 110}
	ink   = [3]int{20, 20, 20}
)

// RenderOptions controls document text that is not part of the registration.
type RenderOptions struct {
	// Location is the zone dates and times are printed in. Defaults to UTC.
	Location *time.Location
	// CollegeFallback is printed when an event has no college name.
	CollegeFallback string
	// IssuerName appears under the certificate signature line.
	IssuerName string
	QRSize     int
}

// Renderer lays out ticket and certificate PDFs. It holds no mutable state and is
// safe for concurrent use.
type Renderer struct {
	opts RenderOptions
}

// NewRenderer creates a Renderer.
func NewRenderer(opts RenderOptions) *Renderer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.IssuerName == "" {
		opts.IssuerName = "Event Coordinator"
	}
	if opts.QRSize <= 0 {
		opts.QRSize = DefaultQRSize
	}
	return &Renderer{opts: opts}
}

// Subject is everything printed on a credential.
type Subject struct {
	Registration *models.Registration
	Event        *models.Event
	User         *models.User
	IssuedAt     time.Time
}

// Ticket renders the compact two-panel ticket with its QR code.
func (r *Renderer) Ticket(s Subject) ([]byte, error) {
	payload, err := BuildPayload(s.Registration.ID, s.IssuedAt)
	if err != nil {
		return nil, err
	}
	qr, err := EncodeQR(payload, r.opts.QRSize)
	if err != nil {
		return nil, err
	}
	pdf := r.ticketPDF(s, qr)
	return output(pdf)
}

// Certificate renders the A4 participation certificate. It carries no QR code.
func (r *Renderer) Certificate(s Subject) ([]byte, error) {
	return output(r.certificatePDF(s))
}

func (r *Renderer) ticketPDF(s Subject, qr []byte) *gofpdf.Fpdf {
	// Size is portrait-wise; "L" turns it into a 200 x 80 page.
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: ticketHeight, Ht: ticketWidth},
	})
	stamp(pdf, s.IssuedAt)
	pdf.SetTitle("Event Ticket", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	tr := encoder(pdf)

	e, u := s.Event, s.User
	start := e.StartDate.In(r.opts.Location)

	// Information panel.
	setFill(pdf, brand)
	pdf.Rect(0, 0, infoWidth, 14, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(margin, 4)
	pdf.CellFormat(infoWidth-2*margin, 6, "EVENT TICKET", "", 0, "L", false, 0, "")

	textWidth := infoWidth - 2*margin
	pdf.SetTextColor(ink[0], ink[1], ink[2])
	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetXY(margin, 17)
	pdf.CellFormat(textWidth, 8, fit(pdf, tr(e.Title), textWidth), "", 0, "L", false, 0, "")

	rows := [][2]string{
		{"Date", start.Format("Monday, 02 January 2006")},
		{"Time", start.Format("15:04 MST")},
		{"Location", orDash(e.Location)},
		{"College", orDash(r.college(e))},
		{"Attendee", orDash(u.FullName)},
		{"Email", u.Email},
	}
	y := 28.0
	const labelWidth = 20.0
	for _, row := range rows {
		pdf.SetXY(margin, y)
		pdf.SetFont("Helvetica", "", 7.5)
		pdf.SetTextColor(muted[0], muted[1], muted[2])
		pdf.CellFormat(labelWidth, 5, strings.ToUpper(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9.5)
		pdf.SetTextColor(ink[0], ink[1], ink[2])
		pdf.CellFormat(textWidth-labelWidth, 5, fit(pdf, tr(row[1]), textWidth-labelWidth), "", 0, "L", false, 0, "")
		y += 6.2
	}

	pdf.SetXY(margin, ticketHeight-10)
	pdf.SetFont("Courier", "B", 9)
	pdf.SetTextColor(brand[0], brand[1], brand[2])
	pdf.CellFormat(textWidth, 5, "TICKET # "+s.Registration.ShortID(), "", 0, "L", false, 0, "")

	// Tear line.
	pdf.SetDrawColor(muted[0], muted[1], muted[2])
	pdf.SetDashPattern([]float64{1.5, 1.5}, 0)
	pdf.Line(infoWidth, 4, infoWidth, ticketHeight-4)
	pdf.SetDashPattern([]float64{}, 0)

	// Scan panel.
	qrX := infoWidth + (scanWidth-qrEdge)/2
	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", qrX, 8, qrEdge, qrEdge, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetXY(infoWidth, 8+qrEdge+2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(ink[0], ink[1], ink[2])
	pdf.CellFormat(scanWidth, 5, "Scan at the entrance", "", 2, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(muted[0], muted[1], muted[2])
	pdf.CellFormat(scanWidth, 4, "Show this code to the event staff", "", 0, "C", false, 0, "")
	return pdf
}

func (r *Renderer) certificatePDF(s Subject) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	stamp(pdf, s.IssuedAt)
	pdf.SetTitle("Certificate of Participation", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := encoder(pdf)

	w, h := pdf.GetPageSize()
	e, u := s.Event, s.User
	textWidth := w - 50

	pdf.SetDrawColor(brand[0], brand[1], brand[2])
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, w-20, h-20, "D")
	pdf.SetLineWidth(0.3)
	pdf.Rect(14, 14, w-28, h-28, "D")

	centred := func(y float64, style string, size float64, color [3]int, text string) {
		pdf.SetFont("Times", style, size)
		pdf.SetTextColor(color[0], color[1], color[2])
		pdf.SetXY(25, y)
		pdf.CellFormat(textWidth, size*0.5, fit(pdf, tr(text), textWidth), "", 0, "C", false, 0, "")
	}

	centred(55, "B", 26, brand, "CERTIFICATE OF PARTICIPATION")
	centred(90, "I", 14, muted, "This is to certify that")
	centred(105, "B", 28, ink, displayName(u))
	centred(125, "I", 14, muted, "has successfully participated in")
	centred(140, "B", 20, ink, e.Title)
	held := "held on " + e.StartDate.In(r.opts.Location).Format("02 January 2006")
	if c := r.college(e); c != "" {
		held += " at " + c
	}
	centred(157, "", 13, muted, held)

	sigY := h - 75
	pdf.SetDrawColor(ink[0], ink[1], ink[2])
	pdf.Line(w/2-35, sigY, w/2+35, sigY)
	centred(sigY+3, "", 12, ink, r.opts.IssuerName)

	pdf.SetFont("Courier", "", 9)
	pdf.SetTextColor(muted[0], muted[1], muted[2])
	pdf.SetXY(25, h-30)
	pdf.CellFormat(textWidth, 5, "Registration ID: "+s.Registration.ShortID(), "", 0, "C", false, 0, "")
	return pdf
}

func (r *Renderer) college(e *models.Event) string {
	if strings.TrimSpace(e.CollegeName) != "" {
		return e.CollegeName
	}
	return r.opts.CollegeFallback
}

// fit shortens s with an ellipsis until it fits width in the current font.
// s must already be translated to the single-byte font encoding.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for n := len(s); n > 0; n-- {
		cut := strings.TrimRight(s[:n], " ") + ellipsis
		if pdf.GetStringWidth(cut) <= width {
			return cut
		}
	}
	return ellipsis
}

// encoder converts UTF-8 to the core-font code page. Unmappable runes become '?'.
func encoder(pdf *gofpdf.Fpdf) func(string) string {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return func(s string) string {
		b := []byte(tr(s))
		for i := range b {
			if b[i] == 0 {
				b[i] = '?'
			}
		}
		return string(b)
	}
}

func stamp(pdf *gofpdf.Fpdf, at time.Time) {
	pdf.SetCreator("campuspass", false)
	pdf.SetCreationDate(at)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func displayName(u *models.User) string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Email
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func setFill(pdf *gofpdf.Fpdf, c [3]int) {
	pdf.SetFillColor(c[0], c[1], c[2])
}
