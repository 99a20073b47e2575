package jenkins

import (
	"html"
	"regexp"

	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

var (
	textareaRe   = regexp.MustCompile(`(?is)<textarea\b[^>]*name="([^"]+)"[^>]*>(.*?)</textarea>`)
	scriptNameRe = regexp.MustCompile(`_\..*Script.*`)
)

// ParseReplayHTML extracts the script textareas from a replay page.
func ParseReplayHTML(page string) *models.BuildReplay {
	replay := &models.BuildReplay{Scripts: []string{}}
	for _, m := range textareaRe.FindAllStringSubmatch(page, -1) {
		if scriptNameRe.MatchString(m[1]) {
			replay.Scripts = append(replay.Scripts, html.UnescapeString(m[2]))
		}
	}
	return replay
}
