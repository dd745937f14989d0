package emailsvc

import (
	"encoding/json"
	htmltmpl "html/template"
	"net/mail"
	"testing"
	texttmpl "text/template"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/tests"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock(testutil.NewConfig(t))
	to := []mail.Address{{Name: "Hero", Address: "hero@test.cd"}}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantSent bool
		wantText string
		wantHTML string
	}{
		{name: "no recipients", msg: core.EmailMessage{Subject: "Hi", BodyStr: "hello"}},
		{name: "no content", msg: core.EmailMessage{To: to, Subject: "Hi"}},
		{name: "plain", msg: core.EmailMessage{To: to, Subject: "Hi", BodyStr: "hello"}, wantSent: true, wantText: "hello"},
		{
			name: "templated",
			msg: core.EmailMessage{
				To:           to,
				Subject:      "Hi",
				Template:     texttmpl.Must(texttmpl.New("t").Parse("Hi {{.Name}}")),
				TemplateData: map[string]string{"Name": "Hero"},
			},
			wantSent: true,
			wantText: "Hi Hero",
		},
		{
			name: "html template",
			msg: core.EmailMessage{
				To:           to,
				Subject:      "Hi",
				Template:     texttmpl.Must(texttmpl.New("t").Parse("Hi {{.Name}}")),
				HTMLTemplate: htmltmpl.Must(htmltmpl.New("t").Parse("<p>Hi {{.Name}}</p>")),
				TemplateData: map[string]string{"Name": "<Hero>"},
			},
			wantSent: true,
			wantText: "Hi <Hero>",
			wantHTML: "<p>Hi &lt;Hero&gt;</p>",
		},
		{
			name: "broken template",
			msg: core.EmailMessage{
				To:           to,
				Subject:      "Hi",
				Template:     texttmpl.Must(texttmpl.New("t").Parse("{{.Name.Lol}}")),
				TemplateData: map[string]interface{}{"Name": 1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.SentMessages = nil // reset
			msg := tt.msg
			svc.SendMessages(&msg)

			sent := svc.Sent()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tt.wantText, sent[0].TextContent)
			assert.Equal(t, tt.wantHTML, sent[0].HTMLContent)
		})
	}
}

func Test_sendgridService_build(t *testing.T) {
	conf := testutil.NewConfig(t)
	to := []mail.Address{{Name: "Hero", Address: "hero@test.cd"}}

	tests := []struct {
		name           string
		testMode       bool
		msg            core.EmailMessage
		wantContent    []string // "type: value"
		wantCategories []string
	}{
		{
			name:        "text only",
			msg:         core.EmailMessage{To: to, Cc: []mail.Address{{Address: "cc@test.cd"}}, Subject: "New notification", TextContent: "hello"},
			wantContent: []string{"text/plain: hello"},
		},
		{
			name: "text & html",
			msg: core.EmailMessage{
				To: to, Subject: "New notification", TextContent: "hello", HTMLContent: "<p>hello</p>",
				Categories: []string{"notification", "groups"},
			},
			wantContent:    []string{"text/plain: hello", "text/html: <p>hello</p>"},
			wantCategories: []string{"Jamii", "notification", "groups"},
		},
		{
			name:        "html only",
			testMode:    true,
			msg:         core.EmailMessage{To: to, Subject: "New notification", HTMLContent: "<p>hello</p>"},
			wantContent: []string{"text/plain: New notification", "text/html: <p>hello</p>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.TestMode = tt.testMode
			m := NewSendgridService(conf, nil).build(tt.msg)

			require.Len(t, m.Personalizations, 1)
			p := m.Personalizations[0]
			assert.Equal(t, "[Jamii] New notification", p.Subject)
			require.Len(t, p.To, 1)
			assert.Equal(t, "hero@test.cd", p.To[0].Address)
			assert.Len(t, p.CC, len(tt.msg.Cc))
			assert.Empty(t, p.BCC)

			content := make([]string, 0, len(m.Content))
			for _, c := range m.Content {
				content = append(content, c.Type+": "+c.Value)
			}
			assert.Equal(t, tt.wantContent, content)
			assert.Equal(t, tt.wantCategories, m.Categories)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(sgmail.GetRequestBody(m), &body))
			assert.Contains(t, body, "personalizations")
			if tt.testMode {
				require.NotNil(t, m.MailSettings)
				require.NotNil(t, m.MailSettings.SandboxMode)
				assert.True(t, *m.MailSettings.SandboxMode.Enable)
			} else {
				assert.Nil(t, m.MailSettings)
			}
		})
	}
}
