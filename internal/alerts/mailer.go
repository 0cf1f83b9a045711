package alerts

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"os"
	"time"
)

type smtpConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

var mailCfg smtpConfig
var mailProvider string

// ConfigureMailerFromEnv loads SMTP configuration from environment variables.
// Required: SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM
func ConfigureMailerFromEnv() error {
	mailProvider = os.Getenv("MAIL_PROVIDER")
	mailCfg = smtpConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if mailProvider == "plunk" {
		return nil
	}
	if mailCfg.Host == "" || mailCfg.Port == "" || mailCfg.Username == "" || mailCfg.Password == "" || mailCfg.From == "" {
		return fmt.Errorf("smtp not configured: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM (or set MAIL_PROVIDER=plunk)")
	}
	return nil
}

// SendEmail sends a plain text email using SMTP with TLS, or the Plunk
// HTTP API when MAIL_PROVIDER=plunk.
func SendEmail(to, subject, body string) error {
	if mailCfg.Host == "" && mailProvider == "" {
		_ = ConfigureMailerFromEnv()
	}

	if mailProvider == "plunk" || (os.Getenv("PLUNK_API_KEY") != "" && mailProvider == "") {
		return sendViaPlunk(to, subject, body)
	}

	addr := mailCfg.Host + ":" + mailCfg.Port
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", mailCfg.From, to, subject)
	msg += "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n"
	msg += "\r\n" + body + "\r\n"

	tlsConfig := &tls.Config{ServerName: mailCfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, mailCfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", mailCfg.Username, mailCfg.Password, mailCfg.Host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(mailCfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}

func sendViaPlunk(to, subject, body string) error {
	apiKey := os.Getenv("PLUNK_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("PLUNK_API_KEY not set")
	}
	apiURL := os.Getenv("PLUNK_API_URL")
	if apiURL == "" {
		apiURL = "https://api.useplunk.com/v1/send"
	}

	payload, _ := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	})

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plunk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
