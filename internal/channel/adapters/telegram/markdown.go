package telegram

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kithbot/kith/internal/channel"
)

var (
	mdInlineCode = regexp.MustCompile("`([^`\\n]+?)`")
	mdBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItalic     = regexp.MustCompile(`(^|[^\w*])[*_]([^*_\n]+?)[*_]($|[^\w*])`)
	mdLink       = regexp.MustCompile(`\[([^\]]+?)\]\(([^)\s]+?)\)`)
	mdHeading    = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	mdBullet     = regexp.MustCompile(`^(\s*)[-+*]\s+`)
)

// formatTelegramOutput renders markdown messages as Telegram HTML and returns
// the parse mode to send them with. Plain text passes through unchanged.
func formatTelegramOutput(text string, format channel.MessageFormat) (string, string) {
	if format != channel.MessageFormatMarkdown || strings.TrimSpace(text) == "" {
		return text, ""
	}
	return markdownToTelegramHTML(text), tgbotapi.ModeHTML
}

// markdownToTelegramHTML handles the subset of markdown used in bot replies:
// headings, bullets, bold, italic, inline code and links.
func markdownToTelegramHTML(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = convertLine(line)
	}
	return strings.Join(lines, "\n")
}

func convertLine(line string) string {
	if m := mdHeading.FindStringSubmatch(line); m != nil {
		return "<b>" + convertInline(m[1]) + "</b>"
	}
	if loc := mdBullet.FindStringSubmatchIndex(line); loc != nil {
		indent := line[loc[2]:loc[3]]
		return indent + "• " + convertInline(line[loc[1]:])
	}
	return convertInline(line)
}

// convertInline escapes HTML and applies inline styles. Code spans are
// rendered first and kept out of further styling.
func convertInline(s string) string {
	var out strings.Builder
	last := 0
	for _, loc := range mdInlineCode.FindAllStringSubmatchIndex(s, -1) {
		out.WriteString(styleText(s[last:loc[0]]))
		out.WriteString("<code>" + escapeHTML(s[loc[2]:loc[3]]) + "</code>")
		last = loc[1]
	}
	out.WriteString(styleText(s[last:]))
	return out.String()
}

func styleText(s string) string {
	if s == "" {
		return s
	}
	s = escapeHTML(s)
	s = mdLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = mdBold.ReplaceAllString(s, "<b>$1</b>")
	s = mdItalic.ReplaceAllString(s, "$1<i>$2</i>$3")
	return s
}

func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
