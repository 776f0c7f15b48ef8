package control_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sweeney/teleop/internal/control"
)

var _ = Describe("Collector stall recovery", func() {
	var (
		t0        time.Time
		collector *control.Collector
		cfg       control.CollectorConfig
	)

	BeforeEach(func() {
		t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		cfg = control.DefaultConfig().Collector
		collector = control.NewCollector(cfg, t0)
	})

	// run feeds a constant velocity from start to end in 20ms ticks and
	// returns the commanded powers.
	run := func(velocity float64, start, end time.Duration) []float64 {
		var powers []float64
		for d := start; d < end; d += 20 * time.Millisecond {
			powers = append(powers, collector.Update(false, velocity, t0.Add(d)))
		}
		return powers
	}

	Context("while the intake spins freely", func() {
		It("always commands forward power", func() {
			Expect(run(2000, 0, 10*time.Second)).To(HaveEach(cfg.Power))
			Expect(collector.State()).To(Equal(control.CollectorRunning))
		})
	})

	Context("when the intake jams", func() {
		It("keeps pushing until the stall threshold elapses", func() {
			Expect(run(0, 0, cfg.StallThreshold)).To(HaveEach(cfg.Power))
		})

		It("reverses for exactly the release window, then resumes", func() {
			run(0, 0, cfg.StallThreshold)

			reverse := run(0, cfg.StallThreshold, cfg.StallThreshold+cfg.StallRelease)
			Expect(reverse).To(HaveEach(-cfg.Power))
			Expect(collector.State()).To(Equal(control.CollectorStallReverse))

			resumed := run(0, cfg.StallThreshold+cfg.StallRelease, 2*cfg.StallThreshold+cfg.StallRelease)
			Expect(resumed).To(HaveEach(cfg.Power))
			Expect(collector.State()).To(Equal(control.CollectorRunning))
		})

		It("pulses again while the jam persists", func() {
			powers := run(0, 0, 5*time.Second)
			reversals := 0
			for i := 1; i < len(powers); i++ {
				if powers[i] < 0 && powers[i-1] > 0 {
					reversals++
				}
			}
			Expect(reversals).To(BeNumerically(">=", 3))
		})
	})

	Context("when the operator toggles it off", func() {
		It("commands zero and ignores stalls", func() {
			Expect(collector.Update(true, 0, t0)).To(BeZero())
			Expect(collector.On()).To(BeFalse())

			Expect(run(0, 20*time.Millisecond, 5*time.Second)).To(HaveEach(0.0))
			Expect(collector.State()).To(Equal(control.CollectorOff))
		})
	})
})
