package views

import (
	zone "github.com/lrstanley/bubblezone"

	"procwatch/ui/tui/state"
)

// ViewProps contains UI-specific properties provided by the Controller.
type ViewProps struct {
	Width, Height int

	Zones *zone.Manager

	// Component States
	AnimCursor  float64
	SpinnerView string
	FilterView  string
	HelpView    string
}

// View defines the contract for any renderable page in the TUI.
type View interface {
	Render(s state.AppState, props ViewProps) string
}
