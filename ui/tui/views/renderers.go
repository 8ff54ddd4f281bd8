package views

import (
	"procwatch/ui/tui/state"
)

func RenderTable(s state.AppState, props ViewProps) string {
	return TableView{}.Render(s, props)
}

func RenderColumns(s state.AppState, props ViewProps) string {
	return ColumnsView{}.Render(s, props)
}
