package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memcoherence/sim"
)

type recordingTracer struct {
	started, stepped, ended []Task
}

func (t *recordingTracer) StartTask(task Task) { t.started = append(t.started, task) }
func (t *recordingTracer) StepTask(task Task)  { t.stepped = append(t.stepped, task) }
func (t *recordingTracer) EndTask(task Task)   { t.ended = append(t.ended, task) }

type testMsg struct {
	sim.MsgMeta
}

func (m *testMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

var _ = Describe("Api", func() {
	var (
		domain *sim.ComponentBase
		tracer *recordingTracer
	)

	BeforeEach(func() {
		domain = sim.NewComponentBase("domain")
		tracer = &recordingTracer{}
	})

	It("should panic if ID is not given", func() {
		Expect(func() {
			StartTask("", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain is nil", func() {
		Expect(func() {
			StartTask("id", "123", nil, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if domain's name is empty", func() {
		Expect(func() {
			StartTask("id", "123", sim.NewComponentBase(""), "kind", "what", nil)
		}).Should(Panic())
	})

	It("should panic if kind is empty", func() {
		Expect(func() {
			StartTask("id", "123", domain, "", "what", nil)
		}).Should(Panic())
	})

	It("should panic if what is empty", func() {
		Expect(func() {
			StartTask("id", "123", domain, "kind", "", nil)
		}).Should(Panic())
	})

	It("should not invoke anything without hooks", func() {
		StartTask("id", "", domain, "kind", "what", nil)
		AddTaskStep("id", domain, "step")
		EndTask("id", domain)

		Expect(tracer.started).To(BeEmpty())
	})

	It("should deliver tasks to the tracer", func() {
		CollectTrace(domain, tracer)

		StartTask("id", "parent", domain, "kind", "what", nil)
		AddTaskStep("id", domain, "step")
		EndTask("id", domain)

		Expect(tracer.started).To(HaveLen(1))
		Expect(tracer.started[0].ParentID).To(Equal("parent"))
		Expect(tracer.started[0].Where).To(Equal("domain"))
		Expect(tracer.stepped).To(HaveLen(1))
		Expect(tracer.stepped[0].Steps[0].What).To(Equal("step"))
		Expect(tracer.ended).To(HaveLen(1))
		Expect(tracer.ended[0].ID).To(Equal("id"))
	})

	It("should not collect twice with the same tracer", func() {
		CollectTrace(domain, tracer)

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})

	It("should trace requests at the receiver", func() {
		CollectTrace(domain, tracer)
		msg := &testMsg{MsgMeta: sim.MsgMeta{ID: "m1"}}

		TraceReqReceive(msg, domain)
		TraceReqComplete(msg, domain)

		Expect(tracer.started[0].ID).To(Equal("m1@domain"))
		Expect(tracer.started[0].Kind).To(Equal("req_in"))
		Expect(tracer.started[0].What).To(Equal("*tracing.testMsg"))
		Expect(tracer.started[0].ParentID).To(Equal("m1_req_out"))
		Expect(tracer.ended[0].ID).To(Equal("m1@domain"))
	})

	It("should trace requests at the sender", func() {
		CollectTrace(domain, tracer)
		msg := &testMsg{MsgMeta: sim.MsgMeta{ID: "m1"}}

		TraceReqInitiate(msg, domain, "")
		TraceReqFinalize(msg, domain)

		Expect(tracer.started[0].ID).To(Equal("m1_req_out"))
		Expect(tracer.started[0].Kind).To(Equal("req_out"))
		Expect(tracer.ended[0].ID).To(Equal("m1_req_out"))
	})
})
