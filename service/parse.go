package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"BriefToPack-server/models"
)

// ParseError reports unrecoverable structure problems in model output. It keeps
// a bounded preview of the raw text for logs; the raw text itself may be huge.
type ParseError struct {
	Stage   string // "extract" or "decode"
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s failed: %v (raw: %q)", e.Stage, e.Err, e.Preview)
	}
	return fmt.Sprintf("parse: %s failed (raw: %q)", e.Stage, e.Preview)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractJSON pulls the JSON payload out of a completion: code fences are
// stripped first, then the largest bracketed span wins. Models wrap JSON in
// prose and fences more often than not.
func ExtractJSON(raw string) (string, error) {
	text := stripFences(raw)
	span, ok := bracketSpan(text)
	if !ok {
		return "", &ParseError{Stage: "extract", Preview: snippet(raw, 200)}
	}
	return span, nil
}

// DecodeJSON extracts and strictly decodes into v.
func DecodeJSON(raw string, v any) error {
	span, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return &ParseError{Stage: "decode", Preview: snippet(raw, 200), Err: err}
	}
	return nil
}

func stripFences(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return s
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return s
}

// bracketSpan returns the larger of first-{...last-} and first-[...last-].
func bracketSpan(s string) (string, bool) {
	objStart, objEnd := strings.Index(s, "{"), strings.LastIndex(s, "}")
	arrStart, arrEnd := strings.Index(s, "["), strings.LastIndex(s, "]")
	obj := objStart >= 0 && objEnd > objStart
	arr := arrStart >= 0 && arrEnd > arrStart
	switch {
	case obj && arr:
		if objEnd-objStart >= arrEnd-arrStart {
			return s[objStart : objEnd+1], true
		}
		return s[arrStart : arrEnd+1], true
	case obj:
		return s[objStart : objEnd+1], true
	case arr:
		return s[arrStart : arrEnd+1], true
	}
	return "", false
}

// Screenplay line scanner. Free-form screenplay text never survives a JSON
// round trip, so scenes are recovered by scanning for headers and labeled
// fields. The scanner is a two-level state machine: outside/inside a scene,
// and which labeled field continuation lines belong to.

type scanField int

const (
	fieldNone scanField = iota
	fieldVisuals
	fieldAction
	fieldCamera
	fieldDialogue
	fieldText
)

var (
	sceneHeaderRe = regexp.MustCompile(`(?i)^scene\s+\d+`)
	timeRangeRe   = regexp.MustCompile(`\(([0-9:]+)\s*[–-]\s*([0-9:]+)\)`)
	plainSecsRe   = regexp.MustCompile(`(?i)\((\d+)\s*s(?:econds?)?\)`)
	firstIntRe    = regexp.MustCompile(`\d+`)
)

// ParseScreenplay recovers scenes from screenplay text. A scene is kept only if
// its visuals or action ended up non-empty. Fewer than 3 recovered scenes means
// the text was not screenplay-shaped at all; the result is padded to 6 with
// clearly marked placeholders.
func ParseScreenplay(raw string) []models.ScreenplayScene {
	var scenes []models.ScreenplayScene
	var cur *models.ScreenplayScene
	field := fieldNone

	flush := func() {
		if cur == nil {
			return
		}
		if strings.TrimSpace(cur.Visuals) != "" || strings.TrimSpace(cur.Action) != "" {
			scenes = append(scenes, *cur)
		}
		cur = nil
		field = fieldNone
	}

	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if isSceneHeader(line) {
			flush()
			cur = &models.ScreenplayScene{
				SceneNumber: headerSceneNumber(line, len(scenes)+1),
				Title:       headerTitle(line),
				DurationSec: headerDuration(line),
			}
			continue
		}
		if cur == nil {
			// prose before the first header
			continue
		}

		clean := strings.ReplaceAll(line, "**", "")
		label, value := splitLabel(clean)
		switch label {
		case "visual", "visuals":
			field = fieldVisuals
			appendField(&cur.Visuals, value)
		case "action":
			field = fieldAction
			appendField(&cur.Action, value)
		case "camera", "camera transition":
			field = fieldCamera
			appendField(&cur.Camera, value)
		case "dialogue", "dialog":
			field = fieldDialogue
			appendField(&cur.Dialogue, value)
		case "text on screen", "text":
			field = fieldText
			appendField(&cur.TextOnScreen, value)
		case "close-up", "close up":
			field = fieldVisuals
			appendField(&cur.Visuals, "Close-up: "+value)
		default:
			// continuation of the active field
			switch field {
			case fieldVisuals:
				appendField(&cur.Visuals, clean)
			case fieldAction:
				appendField(&cur.Action, clean)
			case fieldCamera:
				appendField(&cur.Camera, clean)
			case fieldDialogue:
				appendField(&cur.Dialogue, clean)
			case fieldText:
				appendField(&cur.TextOnScreen, clean)
			}
		}
	}
	flush()

	if len(scenes) < 3 {
		return padScenes(scenes)
	}
	return scenes
}

// isSceneHeader matches "SCENE 3" style markers in any case, and any `##`/`###`
// markdown heading. Headings that turn out to carry no visuals or action are
// dropped by the keep filter, so prose headings never become scenes.
func isSceneHeader(line string) bool {
	if sceneHeaderRe.MatchString(line) {
		return true
	}
	return strings.HasPrefix(line, "##")
}

func headerSceneNumber(line string, fallback int) int {
	if m := firstIntRe.FindString(line); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return fallback
}

func headerTitle(line string) string {
	t := strings.TrimLeft(line, "# ")
	t = strings.ReplaceAll(t, "**", "")
	if i := strings.Index(t, "("); i > 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// headerDuration reads "(0:00–0:05)" time ranges (end time wins) or "(5s)" /
// "(5 seconds)" forms; everything else defaults to 5 seconds.
func headerDuration(line string) int {
	if m := timeRangeRe.FindStringSubmatch(line); m != nil {
		if secs, ok := parseClock(m[2]); ok && secs > 0 {
			return secs
		}
	}
	if m := plainSecsRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 5
}

func parseClock(s string) (int, bool) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		n, err := strconv.Atoi(parts[0])
		return n, err == nil
	case 2:
		m, err1 := strconv.Atoi(parts[0])
		sec, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return m*60 + sec, true
	}
	return 0, false
}

// splitLabel returns the lowercased field label and the text after the colon,
// or ("", line) when the line carries no known label.
func splitLabel(line string) (string, string) {
	i := strings.Index(line, ":")
	if i <= 0 {
		return "", line
	}
	label := strings.ToLower(strings.TrimSpace(line[:i]))
	switch label {
	case "visual", "visuals", "action", "camera", "camera transition",
		"dialogue", "dialog", "text on screen", "text", "close-up", "close up":
		return label, strings.TrimSpace(line[i+1:])
	}
	return "", line
}

func appendField(dst *string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if *dst == "" {
		*dst = value
		return
	}
	*dst += " " + value
}

func padScenes(found []models.ScreenplayScene) []models.ScreenplayScene {
	out := make([]models.ScreenplayScene, 0, 6)
	out = append(out, found...)
	for len(out) < 6 {
		n := len(out) + 1
		out = append(out, models.ScreenplayScene{
			SceneNumber: n,
			Title:       fmt.Sprintf("Scene %d", n),
			DurationSec: 5,
			Visuals:     fmt.Sprintf("Scene %d: Cinematic visual sequence", n),
			Action:      "Dynamic action and movement",
			Camera:      "Medium shot with smooth camera movement",
			Placeholder: true,
		})
	}
	return out
}
