package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	TemplateDir string
}

// FromEnv builds a Config from EMAIL_* environment variables
func FromEnv() *Config {
	cfg := &Config{
		Host:        "smtp.gmail.com",
		Port:        587,
		Username:    os.Getenv("EMAIL_USERNAME"),
		Password:    os.Getenv("EMAIL_PASSWORD"),
		From:        os.Getenv("EMAIL_FROM"),
		TemplateDir: "templates/email",
	}

	if host := os.Getenv("EMAIL_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("EMAIL_PORT")); err == nil {
		cfg.Port = port
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if dir := os.Getenv("EMAIL_TEMPLATE_DIR"); dir != "" {
		cfg.TemplateDir = dir
	}

	return cfg
}

// Service sends transactional email over SMTP
type Service struct {
	config *Config
	logger *slog.Logger

	// send is swappable for tests; defaults to smtp.SendMail
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config *Config, logger *slog.Logger) *Service {
	return &Service{
		config: config,
		logger: logger,
		send:   smtp.SendMail,
	}
}

// Message is a single outbound email
type Message struct {
	To      string
	CC      []string
	Subject string
	Body    string // plain text part
	HTML    string // optional HTML alternative
}

// Send delivers a message. Failures are logged and returned; callers that
// treat email as best-effort may ignore the error.
func (s *Service) Send(msg *Message) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	recipients := append([]string{msg.To}, msg.CC...)

	if err := s.send(addr, auth, s.config.From, recipients, buildMessage(s.config.From, msg)); err != nil {
		s.logger.Error("Failed to send email",
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to send email to %q: %w", msg.To, err)
	}

	s.logger.Info("Email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// SendTemplate renders an HTML template from the template directory and
// sends it, deriving a plain-text alternative by stripping markup
func (s *Service) SendTemplate(to, templateName string, context map[string]any, subject string) error {
	path := filepath.Join(s.config.TemplateDir, templateName+".html")

	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return fmt.Errorf("failed to load template %q: %w", templateName, err)
	}

	var html bytes.Buffer
	if err := tmpl.Execute(&html, context); err != nil {
		return fmt.Errorf("failed to render template %q: %w", templateName, err)
	}

	return s.Send(&Message{
		To:      to,
		Subject: subject,
		Body:    stripTags(html.String()),
		HTML:    html.String(),
	})
}

// SendVerificationEmail sends the email-address verification mail
func (s *Service) SendVerificationEmail(to, verificationURL string) error {
	return s.SendTemplate(to, "email_verification", map[string]any{
		"VerificationURL": verificationURL,
		"AppName":         appName(),
	}, "Verify your email address")
}

// SendPasswordResetEmail sends the password reset mail
func (s *Service) SendPasswordResetEmail(to, resetURL string) error {
	return s.SendTemplate(to, "password_reset", map[string]any{
		"ResetURL": resetURL,
		"AppName":  appName(),
	}, "Reset your password")
}

// SendWelcomeEmail sends the signup welcome mail
func (s *Service) SendWelcomeEmail(to, username string) error {
	return s.SendTemplate(to, "welcome", map[string]any{
		"Username": username,
		"AppName":  appName(),
	}, fmt.Sprintf("Welcome to %s!", appName()))
}

// HealthCheck verifies the SMTP server is reachable
func (s *Service) HealthCheck() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("email health check failed: %w", err)
	}
	return client.Quit()
}

func appName() string {
	if name := os.Getenv("APP_NAME"); name != "" {
		return name
	}
	return "BullReckon"
}

// buildMessage assembles the raw RFC 822 message, as a
// multipart/alternative when an HTML part is present
func buildMessage(from string, msg *Message) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	if len(msg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String())
	}

	const boundary = "bullreckon-alt"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags derives a rough plain-text version of an HTML body
func stripTags(html string) string {
	text := strings.ReplaceAll(html, "<br>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}
