package app_state

// Layout is the presentation mode chosen from the available width.
type Layout int

const (
	LayoutNarrow Layout = iota
	LayoutWide
)

// WideLayoutMinColumns is the terminal width from which the wide layout is used.
const WideLayoutMinColumns = 120

func (l Layout) String() string {
	if l == LayoutWide {
		return "wide"
	}
	return "narrow"
}

// LayoutForWidth returns LayoutWide for terminals at least WideLayoutMinColumns wide.
func LayoutForWidth(width int) Layout {
	if width >= WideLayoutMinColumns {
		return LayoutWide
	}
	return LayoutNarrow
}
