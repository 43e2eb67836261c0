package credentials

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspass/backend/internal/models"
)

func subject() Subject {
	return Subject{
		Registration: &models.Registration{ID: uuid.MustParse("3f2a9c1e-7b4d-4e0a-9c3b-1d2e3f4a5b6c"), Status: models.RegistrationApproved},
		Event: &models.Event{
			Title:       "Inter-College Robotics Championship",
			Location:    "Main Auditorium",
			CollegeName: "Government Engineering College",
			StartDate:   time.Date(2026, 9, 12, 4, 30, 0, 0, time.UTC),
		},
		User:     &models.User{Email: "meera@college.edu", FullName: "Meera Iyer"},
		IssuedAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestTicketCanvas(t *testing.T) {
	r := NewRenderer(RenderOptions{})
	s := subject()
	raw, err := BuildPayload(s.Registration.ID, s.IssuedAt)
	require.NoError(t, err)
	qr, err := EncodeQR(raw, 128)
	require.NoError(t, err)

	pdf := r.ticketPDF(s, qr)
	require.NoError(t, pdf.Error())
	w, h := pdf.GetPageSize()
	assert.InDelta(t, 200.0, w, 0.01)
	assert.InDelta(t, 80.0, h, 0.01)
	assert.InDelta(t, 0.62, infoWidth/w, 0.001)
}

func TestCertificateCanvas(t *testing.T) {
	pdf := NewRenderer(RenderOptions{}).certificatePDF(subject())
	require.NoError(t, pdf.Error())
	w, h := pdf.GetPageSize()
	assert.InDelta(t, 210.0, w, 0.01)
	assert.InDelta(t, 297.0, h, 0.01)
}

func TestRenderProducesPDF(t *testing.T) {
	r := NewRenderer(RenderOptions{CollegeFallback: "Campus"})

	ticket, err := r.Ticket(subject())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(ticket, []byte("%PDF-")))

	cert, err := r.Certificate(subject())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(cert, []byte("%PDF-")))
}

func TestRenderSurvivesHostileText(t *testing.T) {
	s := subject()
	s.Event.Title = strings.Repeat("Annual Cultural Extravaganza ", 20)
	s.Event.Location = ""
	s.Event.CollegeName = ""
	s.User.FullName = "Zoë Ñúñez 李小龍"
	s.User.Email = strings.Repeat("a", 120) + "@college.edu"

	r := NewRenderer(RenderOptions{Location: time.FixedZone("IST", 19800)})
	_, err := r.Ticket(s)
	require.NoError(t, err)
	_, err = r.Certificate(s)
	require.NoError(t, err)
}

func TestFitTruncatesWithEllipsis(t *testing.T) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)

	short := "Hall B"
	assert.Equal(t, short, fit(pdf, short, 100))

	long := strings.Repeat("Very long venue name ", 10)
	got := fit(pdf, long, 40)
	assert.True(t, strings.HasSuffix(got, ellipsis))
	assert.LessOrEqual(t, pdf.GetStringWidth(got), 40.0)

	assert.Equal(t, ellipsis, fit(pdf, long, 0.1))
}
