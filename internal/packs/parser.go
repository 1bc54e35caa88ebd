package packs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/park285/chess-study-bot/internal/rules"
)

var (
	ErrEmptyPack = errors.New("packs: no games found")

	tagLineRe = regexp.MustCompile(`^\[\s*(\w+)\s+"((?:[^"\\]|\\.)*)"\s*\]`)
	moveNumRe = regexp.MustCompile(`^\d+\.+$`)
)

// Game is one importable game: a display title and the validated mainline in
// canonical SAN.
type Game struct {
	Title string
	Moves []string
}

// SplitGames divides a multi-game pack on [Event tag boundaries. Games
// without an [Event tag are treated as a single game.
func SplitGames(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var chunks []string
	var current []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			chunks = append(chunks, text)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "[Event ") && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return chunks
}

// ParseGame extracts the title and mainline moves of one PGN game, validating
// every move through the rules engine. Variations and comments in the source
// are skipped: packs seed a study's mainline, branches are the user's work.
func ParseGame(raw string) (*Game, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyPack
	}

	tags := map[string]string{}
	var movetextLines []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := tagLineRe.FindStringSubmatch(trimmed); m != nil {
			tags[m[1]] = m[2]
			continue
		}
		movetextLines = append(movetextLines, trimmed)
	}

	sans := extractMainline(strings.Join(movetextLines, " "))
	if len(sans) == 0 {
		return nil, ErrEmptyPack
	}

	// Validate and canonicalize through the rules engine.
	engine := rules.New()
	canonical := make([]string, 0, len(sans))
	for i, san := range sans {
		res, err := engine.AttemptSAN(san)
		if err != nil {
			return nil, fmt.Errorf("packs: move %d (%s) is not legal", i+1, san)
		}
		canonical = append(canonical, res.SAN)
	}

	return &Game{
		Title: gameTitle(tags),
		Moves: canonical,
	}, nil
}

// ParsePack parses every game in the pack, skipping unparseable ones. It
// fails only when nothing in the pack is importable.
func ParsePack(raw string) ([]*Game, error) {
	var games []*Game
	for _, chunk := range SplitGames(raw) {
		game, err := ParseGame(chunk)
		if err != nil {
			continue
		}
		games = append(games, game)
	}
	if len(games) == 0 {
		return nil, ErrEmptyPack
	}
	return games, nil
}

func gameTitle(tags map[string]string) string {
	white, black := tags["White"], tags["Black"]
	if white != "" && black != "" && white != "?" && black != "?" {
		return white + " vs " + black
	}
	if event := tags["Event"]; event != "" && event != "?" {
		return event
	}
	return ""
}

// extractMainline tokenizes movetext, dropping comments, nested variations,
// NAGs, move numbers and the game result.
func extractMainline(movetext string) []string {
	var sans []string
	depth := 0
	inComment := false

	for _, token := range strings.Fields(movetext) {
		for token != "" {
			switch {
			case inComment:
				if idx := strings.IndexByte(token, '}'); idx >= 0 {
					inComment = false
					token = token[idx+1:]
					continue
				}
				token = ""
			case strings.HasPrefix(token, "{"):
				inComment = true
				token = token[1:]
			case strings.HasPrefix(token, "("):
				depth++
				token = token[1:]
			case strings.HasPrefix(token, ")"):
				if depth > 0 {
					depth--
				}
				token = token[1:]
			default:
				// A token may end with one or more closing parens.
				body := token
				var rest string
				if idx := strings.IndexByte(token, ')'); idx >= 0 {
					body, rest = token[:idx], token[idx:]
				}
				if depth == 0 {
					if san := cleanSAN(body); san != "" {
						sans = append(sans, san)
					}
				}
				token = rest
			}
		}
	}
	return sans
}

func cleanSAN(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	switch token {
	case "1-0", "0-1", "1/2-1/2", "*":
		return ""
	}
	if strings.HasPrefix(token, "$") || moveNumRe.MatchString(token) || strings.Trim(token, "0123456789") == "" {
		return ""
	}
	// "12.e4" and "12...e4" forms carry the number prefix.
	if idx := strings.LastIndexByte(token, '.'); idx >= 0 {
		token = token[idx+1:]
	}
	token = strings.TrimRight(token, "!?")
	return token
}
