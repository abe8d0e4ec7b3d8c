// showroom - Product Model Viewer
// Preview a GLB model in your terminal with live camera, material and
// lighting settings, then save them per model.
//
// Commands:
//
//	view      - Surface and control panel in one terminal
//	surface   - Rendering surface served over WebSocket
//	panel     - Control panel connected to a running surface
//	snapshot  - Render one frame to PNG
//
// View controls:
//
//	Mouse drag  - Orbit camera
//	Scroll      - Zoom in/out
//	W/S/A/D     - Orbit up/down/left/right
//	+/-         - Zoom
//	Up/Down     - Select panel row
//	Left/Right  - Adjust panel row
//	C           - Capture camera position into the settings
//	X           - Switch renderer
//	Ctrl+S      - Save settings
//	Esc         - Quit
package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, "showroom - Product Model Viewer\n\n")
	fmt.Fprintf(os.Stderr, "Usage: showroom <command> [options] [model.glb]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  view      Surface and control panel in one terminal\n")
	fmt.Fprintf(os.Stderr, "  surface   Serve a rendering surface over WebSocket\n")
	fmt.Fprintf(os.Stderr, "  panel     Control panel for a running surface\n")
	fmt.Fprintf(os.Stderr, "  snapshot  Render one frame to PNG\n")
	fmt.Fprintf(os.Stderr, "\nRun 'showroom <command> -h' for command options.\n")
	fmt.Fprintf(os.Stderr, "\nView controls:\n")
	fmt.Fprintf(os.Stderr, "  Mouse drag  - Orbit camera\n")
	fmt.Fprintf(os.Stderr, "  Scroll, +/- - Zoom in/out\n")
	fmt.Fprintf(os.Stderr, "  W/S/A/D     - Orbit\n")
	fmt.Fprintf(os.Stderr, "  Up/Down     - Select panel row\n")
	fmt.Fprintf(os.Stderr, "  Left/Right  - Adjust panel row\n")
	fmt.Fprintf(os.Stderr, "  C           - Capture camera position\n")
	fmt.Fprintf(os.Stderr, "  X           - Switch renderer\n")
	fmt.Fprintf(os.Stderr, "  Ctrl+S      - Save settings\n")
	fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "view":
		err = runView(args)
	case "surface":
		err = runSurface(args)
	case "panel":
		err = runPanel(args)
	case "snapshot":
		err = runSnapshot(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
