package domain

import (
	"encoding/json"
	"strings"
)

// CategoryColor is a style token. Presentation classes are looked up,
// never derived by string manipulation.
type CategoryColor string

const (
	ColorBlue    CategoryColor = "blue"
	ColorEmerald CategoryColor = "emerald"
	ColorAmber   CategoryColor = "amber"
	ColorRose    CategoryColor = "rose"
	ColorViolet  CategoryColor = "violet"
	ColorPink    CategoryColor = "pink"
	ColorCyan    CategoryColor = "cyan"
	ColorSlate   CategoryColor = "slate"
)

// ColorStyle holds the presentation variants of a token.
type ColorStyle struct {
	TextClass  string `json:"textClass"`
	BadgeClass string `json:"badgeClass"`
	Hex        string `json:"hex"`
}

var colorStyles = map[CategoryColor]ColorStyle{
	ColorBlue:    {TextClass: "text-blue-500", BadgeClass: "bg-blue-100 dark:bg-blue-900/30", Hex: "#3b82f6"},
	ColorEmerald: {TextClass: "text-emerald-500", BadgeClass: "bg-emerald-100 dark:bg-emerald-900/30", Hex: "#10b981"},
	ColorAmber:   {TextClass: "text-amber-500", BadgeClass: "bg-amber-100 dark:bg-amber-900/30", Hex: "#f59e0b"},
	ColorRose:    {TextClass: "text-rose-500", BadgeClass: "bg-rose-100 dark:bg-rose-900/30", Hex: "#f43f5e"},
	ColorViolet:  {TextClass: "text-violet-500", BadgeClass: "bg-violet-100 dark:bg-violet-900/30", Hex: "#8b5cf6"},
	ColorPink:    {TextClass: "text-pink-500", BadgeClass: "bg-pink-100 dark:bg-pink-900/30", Hex: "#ec4899"},
	ColorCyan:    {TextClass: "text-cyan-500", BadgeClass: "bg-cyan-100 dark:bg-cyan-900/30", Hex: "#06b6d4"},
	ColorSlate:   {TextClass: "text-slate-500", BadgeClass: "bg-slate-100 dark:bg-slate-800/50", Hex: "#64748b"},
}

// ParseCategoryColor accepts a bare token ("rose") or a legacy class
// string ("text-rose-500"). Unknown input resolves to blue.
func ParseCategoryColor(s string) CategoryColor {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "text-")
	s = strings.TrimPrefix(s, "bg-")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	c := CategoryColor(s)
	if _, ok := colorStyles[c]; ok {
		return c
	}
	return ColorBlue
}

// Style returns the lookup entry; unknown tokens get the blue style.
func (c CategoryColor) Style() ColorStyle {
	if st, ok := colorStyles[c]; ok {
		return st
	}
	return colorStyles[ColorBlue]
}

// UnmarshalJSON normalizes legacy class strings found in old caches.
func (c *CategoryColor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseCategoryColor(s)
	return nil
}
