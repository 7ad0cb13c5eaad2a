// Package main is the entry point for the InsightPDF service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/insight-pdf/internal/insightpdf"
)

func main() {
	insightpdf.NewApp().Run()
}
