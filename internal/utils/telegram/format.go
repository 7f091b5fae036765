package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	dl "github.com/open-builders/filmbank/internal/domain/ledger"
)

const FilmSign = "🎞️"

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape makes s safe for Telegram HTML parse mode.
func Escape(s string) string { return htmlEscaper.Replace(s) }

func escapeAttr(s string) string {
	return strings.ReplaceAll(Escape(s), `"`, "&quot;")
}

// RoleHTML renders a member for public lists: the role label, linked to the
// role URL or the public t.me page when one exists. It never produces a
// tg:// mention.
func RoleHTML(rec dl.UserRecord) string {
	role := dl.NormalizeName(rec.Role)
	if role == "" {
		role = "No role"
	}
	link := strings.TrimSpace(rec.RoleLink)
	if link == "" && strings.TrimSpace(rec.Username) != "" {
		link = "https://t.me/" + strings.TrimSpace(rec.Username)
	}
	if link != "" && dl.IsHTTPURL(link) {
		return fmt.Sprintf(`<a href="%s">%s</a>`, escapeAttr(link), Escape(role))
	}
	return Escape(role)
}

// AdminLabel is the plain-text label admins see on buttons.
func AdminLabel(userID int64, rec dl.UserRecord) string {
	username := strings.TrimSpace(rec.Username)
	name := dl.NormalizeName(rec.DisplayName)
	if name == "" {
		name = "No name"
	}
	base := dl.NormalizeName(rec.Role)
	if base == "" {
		if username != "" {
			base = "@" + username
		} else {
			base = name
		}
	}
	if username == "" {
		base += " · id:" + strconv.FormatInt(userID, 10)
	}
	return base
}

// UserLink is a mention link; used only in private audit output.
func UserLink(userID int64, title string) string {
	t := dl.NormalizeName(title)
	if t == "" {
		t = "Profile"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, Escape(t))
}

// Actor renders the person who triggered an audited action.
func Actor(userID int64, fullName, username string) string {
	title := dl.NormalizeName(fullName)
	if title == "" && username != "" {
		title = "@" + username
	}
	if title == "" {
		title = strconv.FormatInt(userID, 10)
	}
	return UserLink(userID, title)
}

// Films renders an amount with the currency sign.
func Films(n int64) string { return strconv.FormatInt(n, 10) + FilmSign }

// Signed renders a delta with an explicit sign.
func Signed(n int64) string { return fmt.Sprintf("%+d", n) }

// ChangeLine renders one balance adjustment report line.
func ChangeLine(c dl.BalanceChange) string {
	return fmt.Sprintf("%s %s -> %s", RoleHTML(c.Record), Signed(c.Delta), Films(c.After))
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// TruncateLines keeps the first limit lines, noting how many were dropped.
func TruncateLines(lines []string, limit int) []string {
	if len(lines) <= limit {
		return lines
	}
	out := append([]string(nil), lines[:limit]...)
	return append(out, fmt.Sprintf("… and %d more", len(lines)-limit))
}
