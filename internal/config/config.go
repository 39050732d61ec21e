package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	RawDir    string
	OutputDir string

	MatchThreshold float64
	MatchMargin    float64

	MailSubject  string
	MailTemplate string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
	SMTPTLS  bool

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailFrom         string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	SendConcurrency int

	IntakeProvider      string
	IntakeLabel         string
	IntakeSubjectFilter string
	IntakeIntervalSec   int
	IntakeFetchMax      int
}

const defaultTemplate = "<p>Gentile {nome} {cognome},</p>" +
	"<p>in allegato trova la Sua Certificazione Unica {anno}.</p>" +
	"<p>Cordiali saluti</p>"

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawDir:    getEnv("RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		MatchThreshold: getEnvFloat("MATCH_THRESHOLD", 0.85),
		MatchMargin:    getEnvFloat("MATCH_MARGIN", 0.05),

		MailSubject:  getEnv("MAIL_SUBJECT", "Certificazione Unica {anno}"),
		MailTemplate: loadTemplate(),

		SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),
		SMTPTLS:  getEnvBool("SMTP_TLS", true),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailFrom:         getEnv("GMAIL_FROM", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		SendConcurrency: getEnvInt("SEND_CONCURRENCY", 4),

		IntakeProvider:      getEnv("INTAKE_PROVIDER", "imap"),
		IntakeLabel:         getEnv("INTAKE_LABEL", "INBOX"),
		IntakeSubjectFilter: getEnv("INTAKE_SUBJECT_FILTER", ""),
		IntakeIntervalSec:   getEnvInt("INTAKE_INTERVAL_SEC", 60),
		IntakeFetchMax:      getEnvInt("INTAKE_FETCH_MAX", 10),
	}

	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}
	return cfg, nil
}

func loadTemplate() string {
	if path := getEnv("MAIL_TEMPLATE_PATH", ""); path != "" {
		if blob, err := os.ReadFile(path); err == nil {
			return string(blob)
		}
	}
	return getEnv("MAIL_TEMPLATE", defaultTemplate)
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
