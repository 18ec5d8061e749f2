package notify

import (
	"fmt"
	"html/template"
	"io"
)

const baseStyle = `
	body { margin: 0; padding: 0; font-family: Arial, sans-serif; line-height: 1.6; }
	.container { max-width: 600px; margin: 0 auto; padding: 20px; background-color: #ffffff; }
	.header { background-color: #0052CC; color: white; text-align: center; padding: 30px; border-radius: 8px 8px 0 0; }
	.content { background-color: #f8f9fa; padding: 30px; border-radius: 0 0 8px 8px; text-align: center; }
	.title { font-size: 24px; font-weight: bold; margin: 0; padding: 0; }
	.message { font-size: 16px; color: #333333; margin: 20px 0; line-height: 1.6; }
	.time { background-color: #E3F2FD; padding: 15px; border-radius: 6px; display: inline-block; margin: 15px 0; font-weight: bold; color: #0052CC; }
	.footer { text-align: center; margin-top: 30px; color: #666666; font-size: 14px; }
`

const pageLayout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>{{.Style}}</style>
</head>
<body>
<div class="container">
  <div class="header"><h1 class="title">{{.Title}}</h1></div>
  <div class="content">
    <p class="message">{{.Lead}}</p>
    <div class="time">{{.TimeLabel}}<br>{{.TimeValue}}</div>
    <p class="message">{{.Closing}}</p>
  </div>
  <div class="footer">This is an automated notification from the laundry service</div>
</div>
</body>
</html>`

var bodyTemplate = template.Must(template.New("email").Parse(pageLayout))

type bodyFields struct {
	Title     string
	Style     template.CSS
	Lead      string
	TimeLabel string
	TimeValue string
	Closing   string
}

// renderBody writes the HTML body for the given kind into w.
func renderBody(w io.Writer, kind Kind, data Data) error {
	var f bodyFields
	f.Style = template.CSS(baseStyle)

	switch kind {
	case KindAlmostDone:
		f.Title = "Your Laundry is Almost Done!"
		f.Lead = fmt.Sprintf("Your laundry in %s will complete its cycle in about 5 minutes.", data.MachineName)
		f.TimeLabel = "Expected Completion Time"
		f.TimeValue = data.CompletionTime
		f.Closing = "Please make sure to collect your items promptly to allow others to use the machine."
	case KindAlmostAvailable:
		f.Title = "Machine Available Soon!"
		f.Lead = fmt.Sprintf("Good news! The %s you're waiting for will be available in about 5 minutes.", data.MachineName)
		f.TimeLabel = "Expected Availability"
		f.TimeValue = data.CompletionTime
		f.Closing = "The current user has been notified that their laundry is almost done. Get ready to start your cycle!"
	case KindTest:
		f.Title = "Test Email Confirmation"
		f.Lead = "Your email notifications are working correctly!"
		f.TimeLabel = "Email Sent"
		f.TimeValue = data.SentTime
		f.Closing = "You will receive notifications 5 minutes before your laundry is complete, and when a machine you're waiting for becomes available."
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}

	return bodyTemplate.Execute(w, f)
}
