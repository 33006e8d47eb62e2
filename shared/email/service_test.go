package email

import (
	"io"
	"log/slog"
	"net/smtp"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturedSend records the arguments of the last send call
type capturedSend struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func newCapturingService(cfg *Config) (*Service, *capturedSend) {
	captured := &capturedSend{}
	svc := NewService(cfg, testLogger())
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = append([]string(nil), to...)
		captured.msg = append([]byte(nil), msg...)
		return nil
	}
	return svc, captured
}

func TestSendPlainText(t *testing.T) {
	svc, captured := newCapturingService(&Config{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	})

	err := svc.Send(&Message{
		To:      "user@example.com",
		CC:      []string{"audit@example.com"},
		Subject: "Order filled",
		Body:    "Your order was filled.",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", captured.addr)
	assert.Equal(t, "noreply@example.com", captured.from)
	assert.Equal(t, []string{"user@example.com", "audit@example.com"}, captured.to)

	raw := string(captured.msg)
	assert.Contains(t, raw, "To: user@example.com")
	assert.Contains(t, raw, "Cc: audit@example.com")
	assert.Contains(t, raw, "Subject: Order filled")
	assert.Contains(t, raw, "Content-Type: text/plain")
	assert.Contains(t, raw, "Your order was filled.")
	assert.NotContains(t, raw, "multipart/alternative")
}

func TestSendWithHTMLAlternative(t *testing.T) {
	svc, captured := newCapturingService(&Config{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	})

	err := svc.Send(&Message{
		To:      "user@example.com",
		Subject: "Welcome",
		Body:    "Welcome aboard",
		HTML:    "<p>Welcome aboard</p>",
	})
	require.NoError(t, err)

	raw := string(captured.msg)
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "Content-Type: text/plain")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, "<p>Welcome aboard</p>")
}

func TestSendTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := `<html><body><p>Hello {{.Username}}, welcome to {{.AppName}}!</p></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.html"), []byte(tmpl), 0o644))

	svc, captured := newCapturingService(&Config{
		Host:        "smtp.example.com",
		Port:        587,
		From:        "noreply@example.com",
		TemplateDir: dir,
	})

	err := svc.SendWelcomeEmail("user@example.com", "alice")
	require.NoError(t, err)

	raw := string(captured.msg)
	assert.Contains(t, raw, "Hello alice, welcome to BullReckon!")
	// The plain-text part must carry the rendered text without markup.
	assert.Contains(t, raw, "multipart/alternative")
}

func TestSendTemplateMissingFile(t *testing.T) {
	svc, _ := newCapturingService(&Config{TemplateDir: t.TempDir()})

	err := svc.SendTemplate("user@example.com", "nonexistent", nil, "Subject")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load template")
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "plain paragraph",
			html: "<p>hello world</p>",
			want: "hello world",
		},
		{
			name: "line breaks",
			html: "line one<br>line two",
			want: "line one\nline two",
		},
		{
			name: "nested markup",
			html: "<div><b>bold</b> and <i>italic</i></div>",
			want: "bold and italic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripTags(tt.html))
		})
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("EMAIL_HOST", "")
	t.Setenv("EMAIL_PORT", "")
	t.Setenv("EMAIL_USERNAME", "bot@example.com")
	t.Setenv("EMAIL_FROM", "")

	cfg := FromEnv()
	assert.Equal(t, "smtp.gmail.com", cfg.Host)
	assert.Equal(t, 587, cfg.Port)
	assert.Equal(t, "bot@example.com", cfg.From)
}
