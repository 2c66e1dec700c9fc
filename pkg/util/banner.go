package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
)

// 定义颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

// Colorize wraps s in an ANSI color; an empty color returns s unchanged.
func Colorize(s, color string) string {
	if color == "" {
		return s
	}
	return color + s + ColorReset
}

// PercentColor 按使用率选择颜色：>=crit 红色，>=warn 黄色，其余绿色
func PercentColor(pct, warn, crit float64) string {
	switch {
	case crit > 0 && pct >= crit:
		return ColorRed
	case warn > 0 && pct >= warn:
		return ColorYellow
	}
	return ColorGreen
}

// Bar renders a fixed-width usage bar such as [#####-----].
func Bar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// PrintBanner 打印整体统一颜色的 ASCII banner
func PrintBanner(w io.Writer, text, color string) {
	fig := figure.NewFigure(text, "", true)
	for _, line := range fig.Slicify() {
		fmt.Fprintln(w, Colorize(line, color))
	}
}
