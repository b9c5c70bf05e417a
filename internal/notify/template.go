package notify

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/cenownik/pricewatch/internal/domain/notification"
)

type emailData struct {
	UserName string
	Title    string
	Link     string
	Current  string
	Previous string
	HasPrev  bool
	Target   string
	Drop     string
	HasDrop  bool
	Savings  string
	HasSave  bool
	Source   string
	Image    string
}

var priceMatchTmpl = template.Must(template.New("price-match").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f5;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:560px;margin:24px auto;background:#ffffff;border-radius:8px;overflow:hidden;">
    <div style="background:#333333;color:#ffffff;padding:16px 24px;">
      <h2 style="margin:0;font-size:18px;">Cena spadła do Twojego progu!</h2>
    </div>
    <div style="padding:24px;">
      <p style="margin-top:0;">Cześć {{.UserName}},</p>
      <p><strong>{{.Title}}</strong> ({{.Source}}) osiągnął Twoją cenę docelową.</p>
      {{if .Image}}<img src="{{.Image}}" alt="" style="max-width:100%;border-radius:4px;"/>{{end}}
      <table style="width:100%;border-collapse:collapse;margin:16px 0;">
        {{if .HasPrev}}<tr>
          <td style="padding:6px 0;color:#6b7280;">Poprzednia cena</td>
          <td style="padding:6px 0;text-align:right;"><s>{{.Previous}} zł</s></td>
        </tr>{{end}}
        <tr>
          <td style="padding:6px 0;color:#6b7280;">Aktualna cena</td>
          <td style="padding:6px 0;text-align:right;"><strong>{{.Current}} zł</strong></td>
        </tr>
        <tr>
          <td style="padding:6px 0;color:#6b7280;">Twój próg</td>
          <td style="padding:6px 0;text-align:right;">{{.Target}} zł</td>
        </tr>
        {{if .HasDrop}}<tr>
          <td style="padding:6px 0;color:#6b7280;">Spadek</td>
          <td style="padding:6px 0;text-align:right;">−{{.Drop}}%</td>
        </tr>{{end}}
        {{if .HasSave}}<tr>
          <td style="padding:6px 0;color:#6b7280;">Oszczędzasz</td>
          <td style="padding:6px 0;text-align:right;">{{.Savings}} zł</td>
        </tr>{{end}}
      </table>
      <p style="text-align:center;">
        <a href="{{.Link}}" style="display:inline-block;background:#10b981;color:#ffffff;text-decoration:none;padding:10px 24px;border-radius:4px;">Zobacz ofertę</a>
      </p>
    </div>
    <div style="padding:12px 24px;color:#9ca3af;font-size:12px;">Cenownik • automatyczne powiadomienie o cenie</div>
  </div>
</body>
</html>`))

// RenderPriceMatchEmail builds the subject and HTML body for a target-price
// match. It never fails: the template is static and data is plain strings.
func RenderPriceMatchEmail(ev *notification.Event) (subject, html string) {
	subject = fmt.Sprintf("%s — cena spadła do %s zł", ev.Offer.Title, formatPLN(ev.NewPrice))

	data := emailData{
		UserName: ev.UserName,
		Title:    ev.Offer.Title,
		Link:     ev.Offer.URL,
		Current:  formatPLN(ev.NewPrice),
		Source:   sourceDisplayName(ev.Offer.Source),
	}
	if ev.PrevPrice > 0 {
		data.HasPrev = true
		data.Previous = formatPLN(ev.PrevPrice)
	}
	if ev.Offer.TargetPrice != nil {
		data.Target = formatPLN(*ev.Offer.TargetPrice)
	}
	if ev.DropPercent > 0 {
		data.HasDrop = true
		data.Drop = fmt.Sprintf("%.0f", ev.DropPercent)
	}
	if ev.Savings > 0 {
		data.HasSave = true
		data.Savings = formatPLN(ev.Savings)
	}
	if len(ev.Offer.Images) > 0 {
		data.Image = ev.Offer.Images[0]
	}

	var b strings.Builder
	if err := priceMatchTmpl.Execute(&b, data); err != nil {
		// Static template over plain strings; reaching this means a
		// programming error, fall back to something deliverable.
		return subject, fmt.Sprintf("<p>%s: %s zł</p>", ev.Offer.Title, formatPLN(ev.NewPrice))
	}
	return subject, b.String()
}
