package pdf

import (
	"strconv"
	"strings"
)

type rgb struct{ r, g, b int }

func hex(s string) rgb {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return defaultColor
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

var (
	defaultColor = rgb{0x9e, 0x9e, 0x9e}
	textColor    = rgb{0x21, 0x21, 0x21}
	mutedColor   = rgb{0x75, 0x75, 0x75}
	accentColor  = rgb{0x12, 0x6e, 0xd3}
	ruleColor    = rgb{0xe0, 0xe0, 0xe0}
	codeFill     = rgb{0xf5, 0xf5, 0xf5}
	targetColor  = rgb{0xd3, 0x2f, 0x2f}
	headerFill   = rgb{0xee, 0xf2, 0xf7}

	severityColors = map[string]rgb{
		"BLOCKER":  hex("#D50000"),
		"CRITICAL": hex("#FF5722"),
		"MAJOR":    hex("#FF9800"),
		"MINOR":    hex("#FFC107"),
		"INFO":     hex("#2196F3"),
		"HIGH":     hex("#EB0A0A"),
		"MEDIUM":   hex("#FF6600"),
		"LOW":      hex("#FFD001"),
	}

	gradeColors = map[string]rgb{
		"A": hex("#D1FADF"),
		"B": hex("#E1F4A9"),
		"C": hex("#FCE8A2"),
		"D": hex("#FFD6AF"),
		"E": hex("#FECCCB"),
	}
)

func severityColor(severity string) rgb {
	if c, ok := severityColors[strings.ToUpper(severity)]; ok {
		return c
	}
	return defaultColor
}

func gradeColor(grade string) rgb {
	if c, ok := gradeColors[grade]; ok {
		return c
	}
	return defaultColor
}

// light reports whether black text reads better than white on c.
func (c rgb) light() bool {
	return c.r*299+c.g*587+c.b*114 > 160_000
}
