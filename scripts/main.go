package main

import (
	"fmt"
	"os"

	pdfPrint "report-scheduler/pkg/print"
)

// Renders the given Grafana d-solo URLs into one PDF, for checking the
// browser setup by hand:
//
//	GRAFANA_USER=admin GRAFANA_PASSWORD=admin go run ./scripts out.pdf <url>...
func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: scripts <out.pdf> <panel url>...")
		os.Exit(2)
	}

	renderer := pdfPrint.NewRodRenderer(os.Getenv("GRAFANA_USER"), os.Getenv("GRAFANA_PASSWORD"))
	if err := renderer.Open(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer renderer.Close()

	if err := pdfPrint.PrintPanels(renderer, os.Args[2:], os.Args[1]); err != nil {
		fmt.Println(err)
	}
}
