package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memcoherence/sim"
)

type sampleSnapshot struct {
	Ticks int
}

type sampleComponent struct {
	*sim.ComponentBase

	buffer sim.Buffer
	ticks  int
}

func (c *sampleComponent) Tick() bool {
	c.ticks++
	return true
}

func (c *sampleComponent) Snapshot() any {
	return &sampleSnapshot{Ticks: c.ticks}
}

func newSampleComponent() *sampleComponent {
	c := &sampleComponent{
		ComponentBase: sim.NewComponentBase("Comp"),
		buffer:        sim.NewBuffer("Comp.Buf", 10),
	}

	c.AddPort("Port1", sim.NewPort(2, 2, "Comp.Port1"))

	return c
}

var _ = Describe("Monitor", func() {
	var (
		m     *Monitor
		c     *sampleComponent
		clock *sim.Clock
	)

	BeforeEach(func() {
		m = NewMonitor()
		c = newSampleComponent()
		clock = sim.NewClock(1 * sim.GHz)
		clock.RegisterComponent(c)

		m.RegisterClock(clock)
		m.RegisterComponent(c)
	})

	serve := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

		return rec
	}

	It("should register components and internal buffers", func() {
		Expect(m.components).To(HaveLen(1))
		Expect(m.buffers).To(HaveLen(3))
	})

	It("should run the clock until done", func() {
		err := m.RunUntil(func() bool { return c.ticks == 5 }, 100)

		Expect(err).NotTo(HaveOccurred())
		Expect(clock.Now()).To(Equal(uint64(5)))
	})

	It("should stop at the cycle limit", func() {
		err := m.RunUntil(func() bool { return false }, 10)

		Expect(err).To(MatchError(sim.ErrCycleLimit))
		Expect(c.ticks).To(Equal(10))
	})

	It("should report the current cycle", func() {
		clock.RunCycles(3)

		rec := serve("/api/now")

		rsp := map[string]any{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp["cycle"]).To(BeNumerically("==", 3))
		Expect(rsp["paused"]).To(BeFalse())
	})

	It("should list the components", func() {
		rec := serve("/api/list_components")

		Expect(rec.Body.String()).To(MatchJSON(`["Comp"]`))
	})

	It("should serialize the snapshot of a component", func() {
		clock.RunCycles(2)

		rec := serve("/api/component/Comp")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Ticks"))
	})

	It("should return 404 for an unknown component", func() {
		rec := serve("/api/component/Nope")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject a malformed field request", func() {
		rec := serve("/api/field/notjson")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should sort the buffers by level", func() {
		c.buffer.Push(1)
		c.buffer.Push(2)

		rec := serve("/api/hangdetector/buffers?sort=level&limit=1")

		rsp := []map[string]any{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0]["buffer"]).To(Equal("Comp.Buf"))
		Expect(rsp[0]["level"]).To(BeNumerically("==", 2))
		Expect(rsp[0]["peak"]).To(BeNumerically("==", 2))
	})

	It("should return all the buffers without a limit", func() {
		rec := serve("/api/hangdetector/buffers")

		rsp := []map[string]any{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(3))
	})

	It("should reject an unknown sort method", func() {
		rec := serve("/api/hangdetector/buffers?sort=name")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list the progress bars", func() {
		bar := m.CreateProgressBar("Ops", 10)
		bar.Update(4, 1)

		rec := serve("/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring(`"finished":4`))

		m.CompleteProgressBar(bar)

		rec = serve("/api/progress")
		Expect(rec.Body.String()).To(MatchJSON("[]"))
	})

	It("should hold the simulation while paused", func() {
		serve("/api/pause")

		done := make(chan error)
		go func() {
			done <- m.RunUntil(func() bool { return c.ticks >= 3 }, 100)
		}()

		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

		serve("/api/continue")

		Eventually(done).Should(Receive(BeNil()))
		Expect(c.ticks).To(Equal(3))
	})
})
