package lineage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// categoricalPalette is the default color cycle assigned to fates when
// no explicit colors are supplied (vega category20 order).
var categoricalPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	"#aec7e8", "#ffbb78", "#98df8a", "#ff9896", "#c5b0d5",
	"#c49c94", "#f7b6d2", "#c7c7c7", "#dbdb8d", "#9edae5",
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// defaultColors returns n palette colors, cycling when n exceeds the
// palette size.
func defaultColors(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = categoricalPalette[i%len(categoricalPalette)]
	}

	return out
}

// parseHexColor splits "#RRGGBB" into channels.
func parseHexColor(s string) (r, g, b uint8, err error) {
	if !hexColorRe.MatchString(s) {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	rv, _ := strconv.ParseUint(s[1:3], 16, 8)
	gv, _ := strconv.ParseUint(s[3:5], 16, 8)
	bv, _ := strconv.ParseUint(s[5:7], 16, 8)

	return uint8(rv), uint8(gv), uint8(bv), nil
}

// meanColor averages colors channel-wise; used for mixed fates.
func meanColor(colors []string) (string, error) {
	if len(colors) == 0 {
		return "", ErrBadColor
	}
	var r, g, b int
	for _, c := range colors {
		cr, cg, cb, err := parseHexColor(c)
		if err != nil {
			return "", err
		}
		r += int(cr)
		g += int(cg)
		b += int(cb)
	}
	n := len(colors)

	return strings.ToLower(fmt.Sprintf("#%02x%02x%02x", r/n, g/n, b/n)), nil
}
