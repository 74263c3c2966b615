// Command issdiag is an offline diagnostic: it parses a saved OEM feed file
// and prints the record nearest to the current time with its derived speed
// and geodetic position. No network calls are made.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/iranarang/iss-data-analysis/internal/oem"
	"github.com/iranarang/iss-data-analysis/internal/orbit"
	"github.com/iranarang/iss-data-analysis/internal/transform"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: issdiag <oem-file.xml>")
		os.Exit(2)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Println("ERROR reading feed file:", err)
		os.Exit(1)
	}

	doc, err := oem.Parse(data)
	if err != nil {
		fmt.Println("ERROR parsing feed:", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d state vectors\n", len(doc.StateVectors))
	if r, ok := doc.Range(); ok {
		fmt.Printf("Epoch range: %v .. %v\n", r.Min.Format(time.RFC3339), r.Max.Format(time.RFC3339))
	}
	if name, ok := doc.Metadata["OBJECT_NAME"]; ok {
		fmt.Printf("Object: %s\n", name)
	}

	now := time.Now().UTC()
	sv, speed, err := orbit.Nearest(doc, now)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	fmt.Printf("Nearest epoch to %v: %s (delta %.0fs)\n",
		now.Format(time.RFC3339), sv.Epoch, now.Sub(sv.EpochTime).Abs().Seconds())
	fmt.Printf("Speed: %.4f km/s\n", speed)

	conv := transform.NewConverter(false)
	pt, err := conv.ToGeodetic(sv.X, sv.Y, sv.Z, sv.EpochTime)
	if err != nil {
		fmt.Println("ERROR converting position:", err)
		os.Exit(1)
	}
	fmt.Printf("Geodetic: lat=%.4f lon=%.4f alt=%.1f km\n", pt.LatDeg, pt.LonDeg, pt.AltKm)
}
