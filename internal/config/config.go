package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Telegram struct {
		BotToken       string `env:"BOT_TOKEN,required"`
		TargetChatID   int64  `env:"TARGET_CHAT_ID" envDefault:"0"`
		PollTimeoutSec int    `env:"POLL_TIMEOUT_SEC" envDefault:"30"`
		APIBaseURL     string `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`
	}

	Store struct {
		DataPath string `env:"DATA_PATH" envDefault:"./data.json"`
		PageSize int    `env:"PAGE_SIZE" envDefault:"10"`
	}

	Admin struct {
		// PBKDF2 string (pbkdf2_sha256$iterations$salt_hex$hash_hex) or plain secret.
		Password     string `env:"ADMIN_PASS"`
		AllowlistRaw string `env:"ADMIN_ALLOWLIST"`
		SessionTTLH  int    `env:"ADMIN_SESSION_TTL_HOURS" envDefault:"12"`

		Allowlist []int64
	}

	Chats struct {
		AuditChatID    int64  `env:"AUDIT_CHAT_ID" envDefault:"0"`
		AdminNotifyRaw string `env:"ADMIN_NOTIFY_CHAT_ID"`
		BackupRaw      string `env:"BACKUP_CHAT_ID"`

		AdminNotifyChatID int64
		BackupChatID      int64
	}

	Membership struct {
		PurgeAfterDays     int `env:"PURGE_AFTER_DAYS" envDefault:"5"`
		PurgeCheckEveryMin int `env:"PURGE_CHECK_EVERY_MIN" envDefault:"60"`
	}

	Backup struct {
		Dir             string `env:"BACKUP_DIR" envDefault:"./backups"`
		At              string `env:"BACKUP_AT" envDefault:"04:05"`
		TZName          string `env:"TZ_NAME" envDefault:"Europe/Moscow"`
		SendFileToAudit bool   `env:"SEND_BACKUP_FILE_TO_AUDIT" envDefault:"false"`

		Hour             int
		Minute           int
		Location         *time.Location
		LocationFallback bool
	}

	Redis struct {
		Addr        string `env:"REDIS_ADDR"`
		Password    string `env:"REDIS_PASSWORD"`
		DB          int    `env:"REDIS_DB" envDefault:"0"`
		AuditStream string `env:"AUDIT_STREAM" envDefault:"filmbank:audit"`
	}

	HTTP struct {
		HealthAddr string `env:"HEALTH_ADDR"`
	}
}

// LoadEnvFiles loads ENV_FILE if set, otherwise .env and etc/filmbank.env.
// Variables already present in the environment are never overridden and
// missing files are ignored.
func LoadEnvFiles() {
	if hint := strings.TrimSpace(os.Getenv("ENV_FILE")); hint != "" {
		_ = godotenv.Load(hint)
		return
	}
	_ = godotenv.Load(".env")
	_ = godotenv.Load("etc/filmbank.env")
}

// Load parses the environment into Config and derives the computed fields.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is empty")
	}
	if c.Telegram.TargetChatID == 0 {
		return fmt.Errorf("TARGET_CHAT_ID is empty/0")
	}
	c.Telegram.APIBaseURL = strings.TrimRight(c.Telegram.APIBaseURL, "/")
	c.Admin.Password = strings.TrimSpace(c.Admin.Password)
	c.Admin.Allowlist = ParseAllowlist(c.Admin.AllowlistRaw)

	var err error
	if c.Chats.AdminNotifyChatID, err = chatIDOrDefault(c.Chats.AdminNotifyRaw, c.Chats.AuditChatID); err != nil {
		return fmt.Errorf("invalid ADMIN_NOTIFY_CHAT_ID: %w", err)
	}
	if c.Chats.BackupChatID, err = chatIDOrDefault(c.Chats.BackupRaw, c.Chats.AuditChatID); err != nil {
		return fmt.Errorf("invalid BACKUP_CHAT_ID: %w", err)
	}

	if c.Store.PageSize <= 0 {
		c.Store.PageSize = 10
	}
	if c.Membership.PurgeAfterDays < 0 {
		return fmt.Errorf("invalid PURGE_AFTER_DAYS: %d", c.Membership.PurgeAfterDays)
	}
	if c.Membership.PurgeCheckEveryMin <= 0 {
		c.Membership.PurgeCheckEveryMin = 60
	}
	if c.Admin.SessionTTLH <= 0 {
		c.Admin.SessionTTLH = 12
	}
	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = 30
	}

	c.Backup.Hour, c.Backup.Minute = ParseBackupAt(c.Backup.At)
	c.Backup.Location, c.Backup.LocationFallback = LoadLocation(c.Backup.TZName)
	return nil
}

// GracePeriod is how long a departed member's record stays restorable.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Membership.PurgeAfterDays) * 24 * time.Hour
}

// PurgeInterval is the delay between purge runs.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.Membership.PurgeCheckEveryMin) * time.Minute
}

// SessionTTL is the admin session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Admin.SessionTTLH) * time.Hour
}

var allowlistSplit = regexp.MustCompile(`[,\s]+`)

// ParseAllowlist splits on commas and whitespace, skipping invalid entries.
func ParseAllowlist(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []int64
	for _, part := range allowlistSplit.Split(raw, -1) {
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

var backupAtRe = regexp.MustCompile(`^\s*(\d{1,2})\s*:\s*(\d{2})\s*$`)

// ParseBackupAt parses HH:MM, clamping to a valid clock time. Malformed
// input falls back to 04:05.
func ParseBackupAt(s string) (int, int) {
	m := backupAtRe.FindStringSubmatch(s)
	if m == nil {
		return 4, 5
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return clamp(hh, 0, 23), clamp(mm, 0, 59)
}

// LoadLocation resolves a time zone name. "moscow" is accepted as an alias
// of Europe/Moscow. Unknown zones fall back to UTC and report fallback=true.
func LoadLocation(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "moscow") {
		name = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, true
	}
	return loc, false
}

func chatIDOrDefault(raw string, def int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
