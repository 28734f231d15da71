// Package main generates synthetic solar panel measurement CSVs for
// exercising the analysis pipeline without real hardware.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/agrade-energy/solarportal/pkg/solar"
)

type generator struct {
	rng        *rand.Rand
	model      solar.GHIModel
	latitude   float64
	longitude  float64
	ratedW     float64
	voltageV   float64
	cloudyProb float64
}

func main() {
	days := flag.Int("days", 7, "Number of days to generate")
	start := flag.String("start", "2024-06-01", "First day (YYYY-MM-DD)")
	interval := flag.Duration("interval", time.Hour, "Sampling interval")
	rated := flag.Float64("rated", 48, "Panel rated power in watts")
	voltage := flag.Float64("voltage", 48, "Nominal operating voltage in volts")
	latitude := flag.Float64("latitude", 22.3193, "Site latitude")
	longitude := flag.Float64("longitude", 114.1694, "Site longitude")
	timezone := flag.String("timezone", "UTC", "Timezone for the generated timestamps")
	cloudyProb := flag.Float64("cloudy-prob", 0.3, "Probability that a generated day is heavily clouded")
	seed := flag.Int64("seed", 0, "Random seed (0 seeds from the clock)")
	modelName := flag.String("model", "haurwitz", "Clear-sky model: ineichen-perez or haurwitz")
	out := flag.String("out", "measurements.csv", "Output CSV path")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	if *rated <= 0 || *voltage <= 0 {
		log.Fatal("rated power and voltage must be positive")
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		log.Fatalf("unknown timezone %q: %v", *timezone, err)
	}
	firstDay, err := time.ParseInLocation("2006-01-02", *start, loc)
	if err != nil {
		log.Fatalf("invalid start date %q: %v", *start, err)
	}
	model, err := solar.ModelByName(*modelName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	gen := &generator{
		rng:        rand.New(rand.NewSource(*seed)),
		model:      model,
		latitude:   *latitude,
		longitude:  *longitude,
		ratedW:     *rated,
		voltageV:   *voltage,
		cloudyProb: *cloudyProb,
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("creating %s: %v", *out, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "voltage_V", "current_A", "power_W", "temperature_C"}); err != nil {
		log.Fatalf("writing header: %v", err)
	}

	rows := 0
	for d := 0; d < *days; d++ {
		dayStart := firstDay.AddDate(0, 0, d)
		damp := gen.dayFactor()
		for t := dayStart; t.Before(dayStart.AddDate(0, 0, 1)); t = t.Add(*interval) {
			if err := w.Write(gen.sample(t, damp)); err != nil {
				log.Fatalf("writing row: %v", err)
			}
			rows++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("flushing %s: %v", *out, err)
	}
	fmt.Printf("wrote %d rows covering %d days to %s (seed %d)\n", rows, *days, *out, *seed)
}

// dayFactor draws the sky condition for one day: heavy cloud, scattered
// cloud or clear, with day-long persistence.
func (g *generator) dayFactor() float64 {
	r := g.rng.Float64()
	switch {
	case r < g.cloudyProb:
		return 0.10 + 0.25*g.rng.Float64()
	case r < g.cloudyProb+0.2:
		return 0.40 + 0.30*g.rng.Float64()
	default:
		return 0.92 + 0.08*g.rng.Float64()
	}
}

// sample produces one CSV row. Power follows the clear-sky irradiance scaled
// by the day's cloud factor with a few percent of sample noise; current is
// derived from power so the electrical readings stay consistent.
func (g *generator) sample(t time.Time, damp float64) []string {
	ghi := g.model(t, g.latitude, g.longitude, 0)
	power := g.ratedW * ghi / 1000 * damp
	power *= 1 + (g.rng.Float64()-0.5)*0.06
	if power < 0.5 {
		power = 0
	}

	hour := float64(t.Hour()) + float64(t.Minute())/60
	ambient := 24 + 6*math.Sin(2*math.Pi*(hour-9)/24)
	panelTemp := ambient + 20*power/g.ratedW + (g.rng.Float64()-0.5)*2

	voltage := 0.0
	current := 0.0
	if power > 0 {
		voltage = g.voltageV * (1 + (g.rng.Float64()-0.5)*0.02)
		current = power / voltage
	}

	return []string{
		t.Format("2006-01-02 15:04:05"),
		strconv.FormatFloat(voltage, 'f', 2, 64),
		strconv.FormatFloat(current, 'f', 4, 64),
		strconv.FormatFloat(power, 'f', 2, 64),
		strconv.FormatFloat(panelTemp, 'f', 2, 64),
	}
}
