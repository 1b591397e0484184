package devices

type Color struct {
	Name string
	R    uint8
	G    uint8
	B    uint8
}

var (
	Off     = Color{Name: "off"}
	Idle    = Color{Name: "idle", B: 50}
	Reading = Color{Name: "reading", R: 255, G: 255}
	Success = Color{Name: "success", G: 255}
	Warning = Color{Name: "warning", R: 255, G: 128}
	Error   = Color{Name: "error", R: 255}
)

// ColorFor maps the responders of a closed round to a status colour.
func ColorFor(active, total int) Color {
	switch {
	case total == 0 || active == 0:
		return Error
	case active >= total:
		return Success
	default:
		return Warning
	}
}
